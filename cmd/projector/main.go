package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/marketplace-engine/internal/config"
	"github.com/example/marketplace-engine/internal/infrastructure/kafka"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/projection"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("[Projector] ========================================")
	log.Println("[Projector] Marketplace Engine - Read Model Projector")
	log.Println("[Projector] ========================================")
	log.Printf("[Projector] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Projector] Topic: %s", cfg.KafkaTopic)

	db, err := store.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[Projector] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Projector] Connected to PostgreSQL (Read DB)")

	readStore := store.NewPostgresReadStore(db)
	if err := readStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("[Projector] Failed to ensure read model schema: %v", err)
	}

	projector := projection.NewProjector(readStore)

	// Rebuild the read models from the full event history before consuming
	eventStore := store.NewPostgresEventStore(db, nil)
	log.Println("[Projector] Replaying events...")
	if err := projector.Replay(eventStore.GetAllEvents()); err != nil {
		log.Printf("[Projector] Replay error: %v", err)
	}
	log.Println("[Projector] Event replay completed")

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "projector")
	defer consumer.Close()

	go func() {
		log.Println("[Projector] Starting event consumer...")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Projector] Consumer error: %v", err)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Projector] Shutting down...")
	cancel()
}
