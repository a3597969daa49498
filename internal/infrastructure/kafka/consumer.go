package kafka

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one event from the topic. A returned error is
// logged; the consumer keeps going, it never wedges the partition on a bad
// message.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Consumer is a group consumer over the event topic.
type Consumer struct {
	reader  *kafka.Reader
	groupID string
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
		groupID: groupID,
	}
}

// Consume reads until the context is cancelled, passing every message to the
// handler.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] %s: read error: %v", c.groupID, err)
			continue
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			log.Printf("[Kafka] %s: handler error on key %s: %v", c.groupID, string(msg.Key), err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
