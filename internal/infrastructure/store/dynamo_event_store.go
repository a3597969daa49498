package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/marketplace-engine/internal/infrastructure/kafka"
	"github.com/google/uuid"
)

// All events share this GSI1 partition so GetAllEvents can read the full
// stream in created_at order.
const dynamoGlobalStreamPK = "EVENTS"

// DynamoEventStore persists events in DynamoDB, keyed (aggregate_id, version).
// A conditional put on that pair gives the same optimistic-concurrency gate
// the PostgreSQL store gets from its primary key.
type DynamoEventStore struct {
	client        *dynamodb.Client
	eventTable    string
	snapshotTable string
	producer      *kafka.Producer
}

type dynamoEvent struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	Version       int    `dynamodbav:"version"`
	ID            string `dynamodbav:"id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	EventType     string `dynamodbav:"event_type"`
	Data          string `dynamodbav:"data"`
	CreatedAt     string `dynamodbav:"created_at"`
	GSI1PK        string `dynamodbav:"gsi1pk"`
}

type dynamoSnapshot struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	Version       int    `dynamodbav:"version"`
	State         string `dynamodbav:"state"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func NewDynamoEventStore(client *dynamodb.Client, tableName, snapshotTableName string, producer *kafka.Producer) *DynamoEventStore {
	return &DynamoEventStore{
		client:        client,
		eventTable:    tableName,
		snapshotTable: snapshotTableName,
		producer:      producer,
	}
}

// Append writes one event at expectedVersion+1 and publishes it. When a
// concurrent writer already took that version the conditional put fails and
// Append reports ErrVersionConflict; nothing is published.
func (es *DynamoEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	event := &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          payload,
		Timestamp:     time.Now(),
		Version:       expectedVersion + 1,
	}

	item, err := attributevalue.MarshalMap(dynamoEvent{
		AggregateID:   event.AggregateID,
		Version:       event.Version,
		ID:            event.ID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Data:          string(payload),
		CreatedAt:     event.Timestamp.Format(time.RFC3339Nano),
		GSI1PK:        dynamoGlobalStreamPK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	_, err = es.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(es.eventTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(aggregate_id) AND attribute_not_exists(version)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("put event: %w", err)
	}

	if es.producer != nil {
		if err := es.producer.Publish(ctx, aggregateID, event); err != nil {
			return nil, err
		}
	}
	return event, nil
}

func (es *DynamoEventStore) GetEvents(aggregateID string) []Event {
	return es.queryEvents(context.Background(), &dynamodb.QueryInput{
		TableName:              aws.String(es.eventTable),
		KeyConditionExpression: aws.String("aggregate_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: aggregateID},
		},
		ScanIndexForward: aws.Bool(true),
	})
}

func (es *DynamoEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) []Event {
	return es.queryEvents(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(es.eventTable),
		KeyConditionExpression: aws.String("aggregate_id = :aid AND version > :ver"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: aggregateID},
			":ver": &types.AttributeValueMemberN{Value: strconv.Itoa(fromVersion)},
		},
		ScanIndexForward: aws.Bool(true),
	})
}

// GetAllEvents reads the whole stream via GSI1, ordered by created_at. Used
// to seed an in-memory read store on boot.
func (es *DynamoEventStore) GetAllEvents() []Event {
	return es.queryEvents(context.Background(), &dynamodb.QueryInput{
		TableName:              aws.String(es.eventTable),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: dynamoGlobalStreamPK},
		},
		ScanIndexForward: aws.Bool(true),
	})
}

// queryEvents runs a query and decodes the items, skipping any that fail to
// unmarshal. Read errors yield an empty slice; replay treats that as an
// empty history.
func (es *DynamoEventStore) queryEvents(ctx context.Context, input *dynamodb.QueryInput) []Event {
	result, err := es.client.Query(ctx, input)
	if err != nil {
		return nil
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		var de dynamoEvent
		if err := attributevalue.UnmarshalMap(item, &de); err != nil {
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, de.CreatedAt)
		events = append(events, Event{
			ID:            de.ID,
			AggregateID:   de.AggregateID,
			AggregateType: de.AggregateType,
			EventType:     de.EventType,
			Data:          json.RawMessage(de.Data),
			Timestamp:     ts,
			Version:       de.Version,
		})
	}
	return events
}

// SaveSnapshot overwrites the single snapshot row for the aggregate.
func (es *DynamoEventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	item, err := attributevalue.MarshalMap(dynamoSnapshot{
		AggregateID:   snapshot.AggregateID,
		AggregateType: snapshot.AggregateType,
		Version:       snapshot.Version,
		State:         string(snapshot.State),
		CreatedAt:     snapshot.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = es.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(es.snapshotTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the aggregate's snapshot, or nil when none exists.
func (es *DynamoEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	result, err := es.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(es.snapshotTable),
		Key: map[string]types.AttributeValue{
			"aggregate_id": &types.AttributeValueMemberS{Value: aggregateID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var ds dynamoSnapshot
	if err := attributevalue.UnmarshalMap(result.Item, &ds); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, ds.CreatedAt)

	return &Snapshot{
		AggregateID:   ds.AggregateID,
		AggregateType: ds.AggregateType,
		Version:       ds.Version,
		State:         json.RawMessage(ds.State),
		CreatedAt:     createdAt,
	}, nil
}
