package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/example/marketplace-engine/internal/domain/cart"
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/domain/user"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/infrastructure/store/mocks"
	"github.com/example/marketplace-engine/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evt(t *testing.T, aggregateID, aggregateType, eventType string, data any) store.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return store.Event{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now(),
	}
}

func TestProjector_CartLifecycle(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	p := NewProjector(readStore)

	events := []store.Event{
		evt(t, "cart-u1", cart.AggregateType, cart.EventLineAdded, cart.LineAdded{
			CartID: "cart-u1", UserID: "u1", LineID: "l1", ProductID: "P1", SellerID: "s1", Quantity: 2, UnitPrice: 100,
		}),
		evt(t, "cart-u1", cart.AggregateType, cart.EventLineAdded, cart.LineAdded{
			CartID: "cart-u1", UserID: "u1", LineID: "l2", ProductID: "P2", SellerID: "s2", Quantity: 1, UnitPrice: 500,
		}),
		evt(t, "cart-u1", cart.AggregateType, cart.EventLineQuantityChanged, cart.LineQuantityChanged{
			CartID: "cart-u1", LineID: "l1", Quantity: 3,
		}),
		evt(t, "cart-u1", cart.AggregateType, cart.EventLineRemoved, cart.LineRemoved{
			CartID: "cart-u1", LineID: "l2",
		}),
	}
	require.NoError(t, p.Replay(events))

	data, ok := readStore.GetData(readmodel.CollectionCarts, "cart-u1")
	require.True(t, ok)
	model := data.(*readmodel.CartReadModel)
	require.Len(t, model.Lines, 1)
	assert.Equal(t, 3, model.Lines[0].Quantity)
	assert.Equal(t, 300, model.Total)
}

func TestProjector_OrderLifecycle(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	p := NewProjector(readStore)
	placedAt := time.Now()

	require.NoError(t, p.Apply(evt(t, "o1", order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "o1", BuyerID: "b1", PaymentMethod: order.PaymentOnline,
		Items: []order.Item{
			{OrderItemID: "i1", ProductID: "P1", SellerID: "s1", Quantity: 2, UnitPrice: 1000, Status: order.StatusCreated},
		},
		ProductAmount: 2000, DeliveryAmount: 500, TotalPrice: 2500, PlacedAt: placedAt,
	})))

	require.NoError(t, p.Apply(evt(t, "o1", order.AggregateType, order.EventPaymentRecorded, order.PaymentRecorded{
		OrderID: "o1", Success: true, RecordedAt: placedAt,
	})))

	require.NoError(t, p.Apply(evt(t, "o1", order.AggregateType, order.EventStatusChanged, order.StatusChanged{
		OrderID: "o1", From: order.StatusCreated, To: order.StatusCompleted, Actor: order.RoleBuyer, ChangedAt: placedAt,
	})))

	data, ok := readStore.GetData(readmodel.CollectionOrders, "o1")
	require.True(t, ok)
	model := data.(*readmodel.OrderReadModel)
	assert.True(t, model.IsPaid)
	assert.Equal(t, string(order.StatusCompleted), model.Status)
	// completed order + completed item unlocks rating
	assert.Equal(t, string(order.StatusCompleted), model.Items[0].Status)
	assert.True(t, model.Items[0].CanRate)
}

func TestProjector_ItemStatusOverride(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	p := NewProjector(readStore)

	require.NoError(t, p.Apply(evt(t, "o1", order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "o1", BuyerID: "b1",
		Items: []order.Item{
			{OrderItemID: "i1", ProductID: "P1", SellerID: "s1", Quantity: 1, UnitPrice: 100},
			{OrderItemID: "i2", ProductID: "P2", SellerID: "s2", Quantity: 1, UnitPrice: 200},
		},
		PlacedAt: time.Now(),
	})))

	require.NoError(t, p.Apply(evt(t, "o1", order.AggregateType, order.EventItemStatusChanged, order.ItemStatusChanged{
		OrderID: "o1", OrderItemID: "i2", To: order.StatusReturnRequested, ChangedAt: time.Now(),
	})))

	data, _ := readStore.GetData(readmodel.CollectionOrders, "o1")
	model := data.(*readmodel.OrderReadModel)
	assert.Equal(t, string(order.StatusCreated), model.Items[0].Status)
	assert.Equal(t, string(order.StatusReturnRequested), model.Items[1].Status)
}

func TestProjector_ReturnLifecycle(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	p := NewProjector(readStore)
	now := time.Now()

	events := []store.Event{
		evt(t, "r1", returns.AggregateType, returns.EventReturnRequested, returns.ReturnRequested{
			ReturnID: "r1", OrderID: "o1", OrderItemID: "i1", UserID: "b1", SellerID: "s1",
			Reason: returns.ReasonDamaged, RequestedAt: now,
		}),
		evt(t, "r1", returns.AggregateType, returns.EventReturnRejected, returns.ReturnRejected{
			ReturnID: "r1", RejectReason: returns.RejectNoDefectFound, RejectedAt: now,
		}),
		evt(t, "r1", returns.AggregateType, returns.EventReturnEscalated, returns.ReturnEscalated{
			ReturnID: "r1", Reason: "photos attached", EscalatedAt: now,
		}),
		evt(t, "r1", returns.AggregateType, returns.EventReturnResolved, returns.ReturnResolved{
			ReturnID: "r1", AcceptRefund: true, ResolvedAt: now,
		}),
		evt(t, "r1", returns.AggregateType, returns.EventReturnRefunded, returns.ReturnRefunded{
			ReturnID: "r1", RefundedAt: now,
		}),
	}
	require.NoError(t, p.Replay(events))

	data, ok := readStore.GetData(readmodel.CollectionReturns, "r1")
	require.True(t, ok)
	model := data.(*readmodel.ReturnRequestReadModel)
	assert.Equal(t, string(returns.StatusRefunded), model.Status)
	assert.Equal(t, string(returns.RejectNoDefectFound), model.RejectReason)
	assert.Equal(t, "photos attached", model.EscalationReason)
	assert.True(t, model.AcceptRefund)
	assert.True(t, model.IsRefunded)
}

func TestProjector_UserLifecycle(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	p := NewProjector(readStore)
	now := time.Now()

	events := []store.Event{
		evt(t, "u1", user.AggregateType, user.EventUserCreated, user.UserCreated{
			UserID: "u1", Email: "a@example.com", PasswordHash: "hash", Name: "Ada", Role: user.RoleArtisan, CreatedAt: now,
		}),
		evt(t, "u1", user.AggregateType, user.EventUserUpdated, user.UserUpdated{
			UserID: "u1", Name: "Ada L.", UpdatedAt: now,
		}),
		evt(t, "u1", user.AggregateType, user.EventUserDeactivated, user.UserDeactivated{
			UserID: "u1", DeactivatedAt: now,
		}),
	}
	require.NoError(t, p.Replay(events))

	data, ok := readStore.GetData(readmodel.CollectionUsers, "u1")
	require.True(t, ok)
	model := data.(*readmodel.UserReadModel)
	assert.Equal(t, "Ada L.", model.Name)
	assert.Equal(t, "artisan", model.Role)
	assert.False(t, model.IsActive)
}
