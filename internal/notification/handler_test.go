package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/infrastructure/store/mocks"
	"github.com/example/marketplace-engine/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	delivered []Message
	err       error
}

func (f *fakeSink) Deliver(ctx context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, msg)
	return nil
}

func marshalEvent(t *testing.T, aggregateType, eventType string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	event := store.Event{
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return value
}

func TestHandler_OrderPlacedNotifiesBuyer(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionUsers, "b1", &readmodel.UserReadModel{
		ID: "b1", Email: "buyer@example.com",
	})
	sink := &fakeSink{}
	handler := NewHandler(sink, readStore)

	value := marshalEvent(t, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "order-12345678", BuyerID: "b1", TotalPrice: 2500,
		Items: []order.Item{{OrderItemID: "i1"}},
	})

	require.NoError(t, handler.HandleEvent(context.Background(), nil, value))

	require.Len(t, sink.delivered, 1)
	msg := sink.delivered[0]
	assert.Equal(t, SeverityInfo, msg.Severity)
	assert.Equal(t, "buyer@example.com", msg.Email)
	assert.Contains(t, msg.Subject, "order-12")
}

func TestHandler_StatusChangeSeverity(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionUsers, "b1", &readmodel.UserReadModel{ID: "b1", Email: "buyer@example.com"})
	readStore.SetData(readmodel.CollectionOrders, "o1", &readmodel.OrderReadModel{ID: "o1", BuyerID: "b1"})
	sink := &fakeSink{}
	handler := NewHandler(sink, readStore)

	cancelled := marshalEvent(t, order.AggregateType, order.EventStatusChanged, order.StatusChanged{
		OrderID: "o1", From: order.StatusCreated, To: order.StatusCancelled,
	})
	require.NoError(t, handler.HandleEvent(context.Background(), nil, cancelled))

	confirmed := marshalEvent(t, order.AggregateType, order.EventStatusChanged, order.StatusChanged{
		OrderID: "o1", From: order.StatusCreated, To: order.StatusConfirmed,
	})
	require.NoError(t, handler.HandleEvent(context.Background(), nil, confirmed))

	// cancellation notifies, confirmation stays quiet
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, SeverityWarning, sink.delivered[0].Severity)
}

func TestHandler_SinkFailureIsDropped(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionUsers, "b1", &readmodel.UserReadModel{ID: "b1", Email: "buyer@example.com"})
	sink := &fakeSink{err: errors.New("smtp down")}
	handler := NewHandler(sink, readStore)

	value := marshalEvent(t, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "o1", BuyerID: "b1",
	})

	// delivery failure must not propagate
	assert.NoError(t, handler.HandleEvent(context.Background(), nil, value))
}

func TestHandler_UnknownUserIsDropped(t *testing.T) {
	sink := &fakeSink{}
	handler := NewHandler(sink, mocks.NewMockReadStore())

	value := marshalEvent(t, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "o1", BuyerID: "ghost",
	})

	require.NoError(t, handler.HandleEvent(context.Background(), nil, value))
	assert.Empty(t, sink.delivered)
}
