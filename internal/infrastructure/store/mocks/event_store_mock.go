package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/google/uuid"
)

// MockEventStore keeps events in memory and enforces the same expected-version
// gate as the real stores, so concurrency paths are testable without a
// database. Every Append is recorded with the raw (unmarshalled) payload.
type MockEventStore struct {
	mu        sync.RWMutex
	events    map[string][]store.Event
	snapshots map[string]*store.Snapshot

	AppendCalls []AppendCall
	// AppendErr forces every Append to fail with this error.
	AppendErr error
	// AppendCallback, when set, replaces the default Append behavior entirely.
	AppendCallback func(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*store.Event, error)
}

// AppendCall records one Append invocation. Data holds the value as passed,
// before JSON encoding, so tests can type-assert on the event struct.
type AppendCall struct {
	AggregateID     string
	AggregateType   string
	EventType       string
	Data            any
	ExpectedVersion int
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		events:      make(map[string][]store.Event),
		snapshots:   make(map[string]*store.Snapshot),
		AppendCalls: make([]AppendCall, 0),
	}
}

func (m *MockEventStore) storeEvent(aggregateID, aggregateType, eventType string, data any, version int) (*store.Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	event := store.Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          payload,
		Timestamp:     time.Now(),
		Version:       version,
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	return &event, nil
}

// Append records the call, then applies the optimistic-concurrency check
// unless a callback or forced error takes over.
func (m *MockEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:     aggregateID,
		AggregateType:   aggregateType,
		EventType:       eventType,
		Data:            data,
		ExpectedVersion: expectedVersion,
	})

	if m.AppendCallback != nil {
		return m.AppendCallback(ctx, aggregateID, aggregateType, eventType, data, expectedVersion)
	}
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	if len(m.events[aggregateID]) != expectedVersion {
		return nil, store.ErrVersionConflict
	}

	return m.storeEvent(aggregateID, aggregateType, eventType, data, expectedVersion+1)
}

func (m *MockEventStore) GetEvents(aggregateID string) []store.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[aggregateID]
}

func (m *MockEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) []store.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var after []store.Event
	for _, e := range m.events[aggregateID] {
		if e.Version > fromVersion {
			after = append(after, e)
		}
	}
	return after
}

func (m *MockEventStore) GetAllEvents() []store.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []store.Event
	for _, history := range m.events {
		all = append(all, history...)
	}
	return all
}

func (m *MockEventStore) SaveSnapshot(ctx context.Context, snapshot *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.AggregateID] = snapshot
	return nil
}

func (m *MockEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[aggregateID], nil
}

// Reset returns the store to its initial state.
func (m *MockEventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]store.Event)
	m.snapshots = make(map[string]*store.Snapshot)
	m.AppendCalls = make([]AppendCall, 0)
	m.AppendErr = nil
	m.AppendCallback = nil
}

// AddEvent seeds history directly, bypassing the version gate and the call
// recorder.
func (m *MockEventStore) AddEvent(aggregateID, aggregateType, eventType string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.storeEvent(aggregateID, aggregateType, eventType, data, len(m.events[aggregateID])+1)
	return err
}
