package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned when an append loses a race against another
// writer on the same aggregate. The losing write is never applied; the caller
// reloads and retries or reports a conflict.
var ErrVersionConflict = errors.New("aggregate version conflict")

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*Event, error)
	GetEvents(aggregateID string) []Event
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) []Event
	GetAllEvents() []Event
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
}
