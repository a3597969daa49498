package returns

import (
	"context"
	"testing"

	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() CreateParams {
	return CreateParams{
		BuyerID:     "buyer-1",
		OrderID:     "order-1",
		OrderItemID: "item-1",
		SellerID:    "seller-1",
		ItemStatus:  order.StatusDelivered,
		Reason:      ReasonDamaged,
	}
}

func createTestReturn(t *testing.T, service *Service) *ReturnRequest {
	t.Helper()
	req, err := service.Create(context.Background(), testParams())
	require.NoError(t, err)
	return req
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)

	req := createTestReturn(t, service)

	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, "buyer-1", req.UserID)
	assert.Equal(t, "seller-1", req.SellerID)
	assert.False(t, req.IsRefunded)
	assert.True(t, req.Open())

	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, EventReturnRequested, eventStore.AppendCalls[0].EventType)
}

func TestService_Create_ItemNotReceived(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	p := testParams()
	p.ItemStatus = order.StatusShipped

	_, err := service.Create(context.Background(), p)

	var it *fault.IllegalTransition
	require.ErrorAs(t, err, &it)
	assert.Equal(t, "order item", it.Entity)
	assert.Equal(t, string(order.StatusShipped), it.From)
}

func TestService_Create_OtherReasonRequiresDescription(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	p := testParams()
	p.Reason = ReasonOther
	p.Description = ""

	_, err := service.Create(context.Background(), p)
	assert.ErrorIs(t, err, fault.ErrValidation)

	p.Description = "arrived two months late"
	req, err := service.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
}

func TestService_Create_UnknownReason(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	p := testParams()
	p.Reason = "changed_my_horoscope"

	_, err := service.Create(context.Background(), p)

	assert.ErrorIs(t, err, fault.ErrValidation)
}

// ============================================
// Seller Decision Tests
// ============================================

func TestService_Approve_Success(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := createTestReturn(t, service)

	updated, err := service.Approve(context.Background(), req.ID, "seller-1")

	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)
	require.NotNil(t, updated.ApprovedAt)
	assert.True(t, updated.RefundDue())
}

func TestService_Approve_WrongSeller(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := createTestReturn(t, service)

	_, err := service.Approve(context.Background(), req.ID, "seller-99")

	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestService_Reject_RequiresEnumeratedReason(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := createTestReturn(t, service)

	_, err := service.Reject(context.Background(), req.ID, "seller-1", "")
	assert.ErrorIs(t, err, fault.ErrValidation)

	updated, err := service.Reject(context.Background(), req.ID, "seller-1", RejectNoDefectFound)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)
	assert.Equal(t, RejectNoDefectFound, updated.RejectReason)
	assert.False(t, updated.RefundDue())
}

func TestService_Reject_AfterApprovalFails(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := createTestReturn(t, service)

	_, err := service.Approve(context.Background(), req.ID, "seller-1")
	require.NoError(t, err)

	_, err = service.Reject(context.Background(), req.ID, "seller-1", RejectItemUsed)

	assert.ErrorIs(t, err, fault.ErrIllegalTransition)
}

// ============================================
// Escalation Tests
// ============================================

func TestService_Escalate_OnlyFromRejected(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	req := createTestReturn(t, service)
	before := len(eventStore.AppendCalls)

	// buyer cannot skip the seller decision
	_, err := service.Escalate(context.Background(), req.ID, "buyer-1", "seller ignores me")

	var it *fault.IllegalTransition
	require.ErrorAs(t, err, &it)
	assert.Equal(t, string(StatusPending), it.From)
	assert.Equal(t, string(StatusEscalated), it.To)
	assert.Len(t, eventStore.AppendCalls, before)

	_, err = service.Reject(context.Background(), req.ID, "seller-1", RejectOutsidePolicy)
	require.NoError(t, err)

	updated, err := service.Escalate(context.Background(), req.ID, "buyer-1", "policy does not apply here")
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, updated.Status)
	assert.Equal(t, "policy does not apply here", updated.EscalationReason)
}

func TestService_Escalate_WrongBuyer(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := createTestReturn(t, service)

	_, err := service.Reject(context.Background(), req.ID, "seller-1", RejectItemUsed)
	require.NoError(t, err)

	_, err = service.Escalate(context.Background(), req.ID, "buyer-99", "not mine but still")

	assert.ErrorIs(t, err, fault.ErrUnauthorized)
}

func TestService_Escalate_RequiresReason(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())

	_, err := service.Escalate(context.Background(), "return-1", "buyer-1", "")

	assert.ErrorIs(t, err, fault.ErrValidation)
}

// ============================================
// Resolution Tests
// ============================================

func escalatedReturn(t *testing.T, service *Service) *ReturnRequest {
	t.Helper()
	req := createTestReturn(t, service)
	_, err := service.Reject(context.Background(), req.ID, "seller-1", RejectNoDefectFound)
	require.NoError(t, err)
	updated, err := service.Escalate(context.Background(), req.ID, "buyer-1", "defect is visible on the photo")
	require.NoError(t, err)
	return updated
}

func TestService_Resolve_AcceptRefund(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := escalatedReturn(t, service)

	updated, err := service.Resolve(context.Background(), req.ID, true)

	require.NoError(t, err)
	assert.Equal(t, StatusResolved, updated.Status)
	assert.True(t, updated.AcceptRefund)
	assert.True(t, updated.IsRefunded)
	assert.True(t, updated.RefundDue())
	assert.False(t, updated.Open())
}

func TestService_Resolve_DeclineRefund(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := escalatedReturn(t, service)

	updated, err := service.Resolve(context.Background(), req.ID, false)

	require.NoError(t, err)
	assert.Equal(t, StatusResolved, updated.Status)
	assert.False(t, updated.IsRefunded)
	assert.False(t, updated.RefundDue())
}

func TestService_Resolve_OnlyFromEscalated(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := createTestReturn(t, service)

	_, err := service.Resolve(context.Background(), req.ID, true)

	assert.ErrorIs(t, err, fault.ErrIllegalTransition)
}

// ============================================
// Refund Completion Tests
// ============================================

func TestService_MarkRefunded_AfterApproval(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	req := createTestReturn(t, service)

	_, err := service.Approve(context.Background(), req.ID, "seller-1")
	require.NoError(t, err)

	updated, err := service.MarkRefunded(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, updated.Status)
	assert.True(t, updated.IsRefunded)

	// retry after completion appends nothing
	before := len(eventStore.AppendCalls)
	updated, err = service.MarkRefunded(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, updated.Status)
	assert.Len(t, eventStore.AppendCalls, before)
}

func TestService_MarkRefunded_DeclinedResolutionFails(t *testing.T) {
	service := NewService(mocks.NewMockEventStore())
	req := escalatedReturn(t, service)

	_, err := service.Resolve(context.Background(), req.ID, false)
	require.NoError(t, err)

	_, err = service.MarkRefunded(context.Background(), req.ID)

	assert.ErrorIs(t, err, fault.ErrIllegalTransition)
}
