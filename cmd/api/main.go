package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/marketplace-engine/internal/api"
	"github.com/example/marketplace-engine/internal/auth"
	"github.com/example/marketplace-engine/internal/command"
	"github.com/example/marketplace-engine/internal/config"
	"github.com/example/marketplace-engine/internal/domain/cart"
	"github.com/example/marketplace-engine/internal/domain/catalog"
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/domain/user"
	"github.com/example/marketplace-engine/internal/gateway"
	"github.com/example/marketplace-engine/internal/infrastructure/kafka"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/pricing"
	"github.com/example/marketplace-engine/internal/projection"
	"github.com/example/marketplace-engine/internal/query"
	"github.com/example/marketplace-engine/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("[API] JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[API] JWT_SECRET must be at least 32 characters long")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("[API] ========================================")
	log.Println("[API] Marketplace Engine - CQRS Mode")
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[API] Topic: %s", cfg.KafkaTopic)
	log.Printf("[API] Event store: %s", cfg.EventStore)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	eventStore, readStore := buildStores(ctx, cfg, producer)

	// External collaborators
	catalogClient := gateway.NewCatalogClient(gateway.NewClient("catalog", cfg.CatalogBaseURL))
	paymentClient := gateway.NewPaymentClient(gateway.NewClient("payment", cfg.PaymentBaseURL))
	walletClient := gateway.NewWalletClient(gateway.NewClient("wallet", cfg.WalletBaseURL))
	ledger := catalog.NewLedger(catalogClient)

	// Pricing strategies
	registry := pricing.NewRegistry()
	registry.Register("WELCOME10", pricing.FixedPercentVoucher{Code: "WELCOME10", Percent: cfg.VoucherPercent})
	registry.Register("SHIPFREE", pricing.FreeDeliveryVoucher{Code: "SHIPFREE"})
	pricer := pricing.NewEngine(registry, cfg.DeliveryFeePerShop, cfg.PointValue)

	// Redis side channel
	cache := redisx.NewStore(redisx.New(cfg.RedisAddr))

	// Domain services
	cartSvc := cart.NewService(eventStore, ledger)
	orderSvc := order.NewService(eventStore)
	returnSvc := returns.NewService(eventStore)
	userSvc := user.NewService(eventStore)

	jwtService := auth.NewJWTService(
		cfg.JWTSecret,
		15*time.Minute, // Access token expiry
		7*24*time.Hour, // Refresh token expiry (7 days)
	)

	cmdHandler := command.NewHandler(cartSvc, orderSvc, returnSvc, ledger, pricer, paymentClient, walletClient, cache, readStore)
	queryHandler := query.NewHandler(readStore)

	// Rebuild read models, then keep them current from Kafka
	projector := projection.NewProjector(readStore)
	log.Println("[API] Replaying events...")
	if err := projector.Replay(eventStore.GetAllEvents()); err != nil {
		log.Printf("[API] Replay error: %v", err)
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "api-projector")
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[API] Starting Kafka consumer (async projection)...")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[API] Projector error: %v", err)
			}
		}
	}()

	handlers := api.NewHandlers(cmdHandler, queryHandler)
	authHandlers := api.NewAuthHandlers(userSvc, jwtService, queryHandler)
	router := api.NewRouter(api.RouterConfig{
		Handlers:     handlers,
		AuthHandlers: authHandlers,
		JWTService:   jwtService,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	wg.Wait()
}

// buildStores selects the event store backend and pairs it with the matching
// read store. Postgres keeps both sides in one database; dynamo and memory
// project into an in-memory read store rebuilt on boot.
func buildStores(ctx context.Context, cfg config.Config, producer *kafka.Producer) (store.EventStoreInterface, store.ReadStoreInterface) {
	switch cfg.EventStore {
	case "postgres":
		db, err := store.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}

		eventStore := store.NewPostgresEventStore(db, producer)
		if err := eventStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to ensure event schema: %v", err)
		}
		readStore := store.NewPostgresReadStore(db)
		if err := readStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to ensure read model schema: %v", err)
		}
		log.Println("[API] Connected to PostgreSQL")
		return eventStore, readStore

	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("[API] Failed to load AWS config: %v", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		log.Printf("[API] Using DynamoDB tables %s / %s", cfg.DynamoEventsTable, cfg.DynamoSnapshotsTbl)
		return store.NewDynamoEventStore(client, cfg.DynamoEventsTable, cfg.DynamoSnapshotsTbl, producer), store.NewReadStore()

	case "memory":
		log.Println("[API] Using in-memory stores (state is lost on restart)")
		return store.NewEventStore(producer), store.NewReadStore()

	default:
		log.Fatalf("[API] Unknown EVENT_STORE backend %q", cfg.EventStore)
		return nil, nil
	}
}
