package query

import (
	"testing"
	"time"

	"github.com/example/marketplace-engine/internal/infrastructure/store/mocks"
	"github.com/example/marketplace-engine/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_GetCart_GroupsBySeller(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionCarts, "cart-user-1", &readmodel.CartReadModel{
		ID:     "cart-user-1",
		UserID: "user-1",
		Lines: []readmodel.CartLineReadModel{
			{LineID: "l1", ProductID: "P1", SellerID: "zeta", Quantity: 1, UnitPrice: 100},
			{LineID: "l2", ProductID: "P2", SellerID: "alpha", Quantity: 2, UnitPrice: 50},
			{LineID: "l3", ProductID: "P3", SellerID: "zeta", Quantity: 1, UnitPrice: 300},
		},
		Total: 500,
	})
	handler := NewHandler(readStore)

	view := handler.GetCart("user-1")

	require.Len(t, view.Groups, 2)
	assert.Equal(t, "alpha", view.Groups[0].SellerID)
	assert.Equal(t, 100, view.Groups[0].Subtotal)
	assert.Equal(t, "zeta", view.Groups[1].SellerID)
	assert.Equal(t, 400, view.Groups[1].Subtotal)
	assert.Equal(t, 500, view.Total)
}

func TestHandler_GetCart_EmptyForUnknownUser(t *testing.T) {
	handler := NewHandler(mocks.NewMockReadStore())

	view := handler.GetCart("nobody")

	assert.Equal(t, "cart-nobody", view.ID)
	assert.Empty(t, view.Groups)
	assert.Equal(t, 0, view.Total)
}

func TestHandler_ListOrdersBySeller(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionOrders, "o1", &readmodel.OrderReadModel{
		ID: "o1", BuyerID: "b1", CreatedAt: time.Now().Add(-time.Hour),
		Items: []readmodel.OrderItemReadModel{{OrderItemID: "i1", SellerID: "seller-1"}},
	})
	readStore.SetData(readmodel.CollectionOrders, "o2", &readmodel.OrderReadModel{
		ID: "o2", BuyerID: "b2", CreatedAt: time.Now(),
		Items: []readmodel.OrderItemReadModel{{OrderItemID: "i2", SellerID: "seller-1"}, {OrderItemID: "i3", SellerID: "seller-2"}},
	})
	readStore.SetData(readmodel.CollectionOrders, "o3", &readmodel.OrderReadModel{
		ID: "o3", BuyerID: "b1", CreatedAt: time.Now(),
		Items: []readmodel.OrderItemReadModel{{OrderItemID: "i4", SellerID: "seller-2"}},
	})
	handler := NewHandler(readStore)

	orders := handler.ListOrdersBySeller("seller-1")

	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID) // newest first
	assert.Equal(t, "o1", orders[1].ID)

	assert.Len(t, handler.ListOrdersByUser("b1"), 2)
	assert.Len(t, handler.ListAllOrders(), 3)
}

func TestHandler_ListEscalated_OldestFirst(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionReturns, "r1", &readmodel.ReturnRequestReadModel{
		ID: "r1", Status: "escalated", RequestedAt: time.Now(),
	})
	readStore.SetData(readmodel.CollectionReturns, "r2", &readmodel.ReturnRequestReadModel{
		ID: "r2", Status: "escalated", RequestedAt: time.Now().Add(-time.Hour),
	})
	readStore.SetData(readmodel.CollectionReturns, "r3", &readmodel.ReturnRequestReadModel{
		ID: "r3", Status: "pending", RequestedAt: time.Now().Add(-2 * time.Hour),
	})
	handler := NewHandler(readStore)

	queue := handler.ListEscalated()

	require.Len(t, queue, 2)
	assert.Equal(t, "r2", queue[0].ID)
	assert.Equal(t, "r1", queue[1].ID)
}

func TestHandler_GetUserByEmail(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.CollectionUsers, "u1", &readmodel.UserReadModel{
		ID: "u1", Email: "artisan@example.com", Role: "artisan",
	})
	handler := NewHandler(readStore)

	u, ok := handler.GetUserByEmail("artisan@example.com")
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)

	_, ok = handler.GetUserByEmail("ghost@example.com")
	assert.False(t, ok)
}
