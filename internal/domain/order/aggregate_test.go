package order

import (
	"context"
	"testing"

	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer  = Actor{UserID: "buyer-1", Role: RoleBuyer}
	seller = Actor{UserID: "seller-1", Role: RoleSeller}
	staff  = Actor{UserID: "staff-1", Role: RoleStaff}
	system = Actor{Role: RoleSystem}
)

func testDraft(method PaymentMethod) Draft {
	return Draft{
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		PaymentMethod: method,
		Items: []Item{
			{ProductID: "P1", SellerID: "seller-1", Quantity: 2, UnitPrice: 1000},
			{ProductID: "P2", SellerID: "seller-2", Quantity: 1, UnitPrice: 500},
		},
		ProductAmount:  2500,
		DeliveryAmount: 1000,
		TotalPrice:     3500,
	}
}

func placeTestOrder(t *testing.T, service *Service, method PaymentMethod) *Order {
	t.Helper()
	order, err := service.Place(context.Background(), testDraft(method))
	require.NoError(t, err)
	return order
}

// advance walks the order through the seller's happy path up to the target
func advance(t *testing.T, service *Service, orderID string, path ...Status) *Order {
	t.Helper()
	var order *Order
	var err error
	for _, target := range path {
		order, err = service.UpdateStatus(context.Background(), orderID, target, seller)
		require.NoError(t, err)
	}
	return order
}

// ============================================
// Place Tests
// ============================================

func TestService_Place_Success(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)

	order := placeTestOrder(t, service, PaymentCashOnDelivery)

	assert.Equal(t, StatusCreated, order.Status)
	assert.False(t, order.IsPaid)
	assert.Equal(t, 3500, order.TotalPrice)
	require.Len(t, order.Items, 2)
	for _, item := range order.Items {
		assert.NotEmpty(t, item.OrderItemID)
		assert.Equal(t, StatusCreated, item.Status)
	}

	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, EventOrderPlaced, eventStore.AppendCalls[0].EventType)
	assert.Equal(t, 0, eventStore.AppendCalls[0].ExpectedVersion)
}

func TestService_Place_EmptyOrder(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	_, err := service.Place(context.Background(), Draft{BuyerID: "buyer-1", PaymentMethod: PaymentOnline})

	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestService_Place_UnknownPaymentMethod(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	draft := testDraft("carrier_pigeon")

	_, err := service.Place(context.Background(), draft)

	assert.ErrorIs(t, err, fault.ErrValidation)
}

// ============================================
// UpdateStatus Tests
// ============================================

func TestService_UpdateStatus_SellerConfirms(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)

	updated, err := service.UpdateStatus(context.Background(), order.ID, StatusConfirmed, seller)

	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	// items follow the order status until overridden
	assert.Equal(t, StatusConfirmed, updated.Items[0].Status)
}

func TestService_UpdateStatus_BuyerCannotCancelShipped(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	order := placeTestOrder(t, service, PaymentCashOnDelivery)
	advance(t, service, order.ID, StatusConfirmed, StatusPreparing, StatusReadyForShipment, StatusShipped)
	before := len(eventStore.AppendCalls)

	_, err := service.UpdateStatus(context.Background(), order.ID, StatusCancelled, buyer)

	var it *fault.IllegalTransition
	require.ErrorAs(t, err, &it)
	assert.Equal(t, "order", it.Entity)
	assert.Equal(t, string(StatusShipped), it.From)
	assert.Equal(t, string(StatusCancelled), it.To)
	assert.Equal(t, string(RoleBuyer), it.Actor)
	assert.Len(t, eventStore.AppendCalls, before) // no mutation

	// the seller may still deliver the same order
	updated, err := service.UpdateStatus(context.Background(), order.ID, StatusDelivered, seller)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
}

func TestService_UpdateStatus_Idempotent(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	order := placeTestOrder(t, service, PaymentCashOnDelivery)
	advance(t, service, order.ID, StatusConfirmed)
	before := len(eventStore.AppendCalls)

	updated, err := service.UpdateStatus(context.Background(), order.ID, StatusConfirmed, seller)

	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.Len(t, eventStore.AppendCalls, before)
}

func TestService_UpdateStatus_BuyerOwnershipEnforced(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)

	_, err := service.UpdateStatus(context.Background(), order.ID, StatusCancelled, Actor{UserID: "someone-else", Role: RoleBuyer})

	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestService_UpdateStatus_SellerMustHaveItems(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)

	_, err := service.UpdateStatus(context.Background(), order.ID, StatusConfirmed, Actor{UserID: "seller-99", Role: RoleSeller})

	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestService_UpdateStatus_NotFound(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	_, err := service.UpdateStatus(context.Background(), "no-such-order", StatusConfirmed, seller)

	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestService_UpdateStatus_StaffRefundsFailedDelivery(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)
	advance(t, service, order.ID, StatusConfirmed, StatusPreparing, StatusReadyForShipment, StatusShipped, StatusDeliveryFailed)

	// buyer cannot arbitrate a failed delivery
	_, err := service.UpdateStatus(context.Background(), order.ID, StatusRefunded, buyer)
	assert.ErrorIs(t, err, fault.ErrIllegalTransition)

	updated, err := service.UpdateStatus(context.Background(), order.ID, StatusRefunded, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, updated.Status)
}

// ============================================
// Payment Tests
// ============================================

func TestService_RecordPayment_Success(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentOnline)

	_, err := service.RequestPayment(context.Background(), order.ID)
	require.NoError(t, err)

	updated, err := service.RecordPayment(context.Background(), order.ID, true)

	require.NoError(t, err)
	assert.True(t, updated.IsPaid)
	assert.Equal(t, StatusPaid, updated.Status)
}

func TestService_RecordPayment_ReplayIsNoOp(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	order := placeTestOrder(t, service, PaymentOnline)

	_, err := service.RequestPayment(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = service.RecordPayment(context.Background(), order.ID, true)
	require.NoError(t, err)
	before := len(eventStore.AppendCalls)

	updated, err := service.RecordPayment(context.Background(), order.ID, true)

	require.NoError(t, err)
	assert.True(t, updated.IsPaid)
	assert.Len(t, eventStore.AppendCalls, before)
}

func TestService_RecordPayment_FailureThenRetry(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentOnline)

	_, err := service.RequestPayment(context.Background(), order.ID)
	require.NoError(t, err)

	updated, err := service.RecordPayment(context.Background(), order.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsPaid)
	assert.Equal(t, StatusPaymentFailed, updated.Status)

	// retry moves the order back to awaiting payment
	updated, err = service.RequestPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, updated.Status)

	updated, err = service.RecordPayment(context.Background(), order.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsPaid)
	assert.Equal(t, StatusPaid, updated.Status)
}

func TestService_RecordPayment_RequiresAwaitingPayment(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentOnline)

	_, err := service.RecordPayment(context.Background(), order.ID, true)

	assert.ErrorIs(t, err, fault.ErrIllegalTransition)
}

func TestService_RequestPayment_CashOrderRejected(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)

	_, err := service.RequestPayment(context.Background(), order.ID)

	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestService_UpdateStatus_SellerConfirmsPaidOrder(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentOnline)

	_, err := service.RequestPayment(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = service.RecordPayment(context.Background(), order.ID, true)
	require.NoError(t, err)

	updated, err := service.UpdateStatus(context.Background(), order.ID, StatusConfirmed, seller)

	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.True(t, updated.IsPaid) // status moves never touch payment state
}

// ============================================
// Item Status Tests
// ============================================

func TestService_SetItemStatus_OverridesSingleItem(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)
	advance(t, service, order.ID, StatusConfirmed, StatusPreparing, StatusReadyForShipment, StatusShipped, StatusDelivered)
	itemID := order.Items[0].OrderItemID

	updated, err := service.SetItemStatus(context.Background(), order.ID, itemID, StatusReturnRequested)

	require.NoError(t, err)
	assert.Equal(t, StatusReturnRequested, updated.Items[0].Status)
	assert.Equal(t, StatusDelivered, updated.Items[1].Status)
	assert.Equal(t, StatusDelivered, updated.Status)
}

func TestService_SetItemStatus_UnknownItem(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	order := placeTestOrder(t, service, PaymentCashOnDelivery)

	_, err := service.SetItemStatus(context.Background(), order.ID, "ghost-item", StatusReturned)

	assert.ErrorIs(t, err, fault.ErrNotFound)
}

// ============================================
// Transition Table Tests
// ============================================

func TestCanTransition_AdminIsUnionOfRoles(t *testing.T) {
	assert.True(t, CanTransition(RoleAdmin, StatusCreated, StatusConfirmed))      // seller
	assert.True(t, CanTransition(RoleAdmin, StatusCreated, StatusCancelled))      // buyer
	assert.True(t, CanTransition(RoleAdmin, StatusDeliveryFailed, StatusRefunded)) // staff
	// system-only moves stay off-limits even for admin
	assert.False(t, CanTransition(RoleAdmin, StatusAwaitingPayment, StatusPaid))
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusRejected, StatusCancelled, StatusRefunded} {
		assert.True(t, IsTerminal(terminal))
		for _, role := range []Role{RoleBuyer, RoleSeller, RoleStaff, RoleAdmin} {
			for _, target := range []Status{StatusConfirmed, StatusCancelled, StatusShipped, StatusRefunded} {
				if terminal == target {
					continue
				}
				assert.False(t, CanTransition(role, terminal, target),
					"%s should not leave %s to %s", role, terminal, target)
			}
		}
	}
	assert.False(t, IsTerminal(StatusDeliveryFailed))
}

func TestCanRate_RequiresCompletedOrderAndItem(t *testing.T) {
	assert.True(t, CanRate(StatusCompleted, Item{Status: StatusCompleted}))
	assert.False(t, CanRate(StatusDelivered, Item{Status: StatusDelivered}))
	assert.False(t, CanRate(StatusCompleted, Item{Status: StatusRefunded}))
}
