package returns

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/example/marketplace-engine/internal/domain/aggregate"
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "ReturnRequest"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
	StatusRefunded  Status = "refunded"
)

// Reason is the buyer's stated ground for a return.
type Reason string

const (
	ReasonDamaged        Reason = "damaged"
	ReasonDefective      Reason = "defective"
	ReasonWrongItem      Reason = "wrong_item"
	ReasonNotAsDescribed Reason = "not_as_described"
	ReasonOther          Reason = "other"
)

func validReason(r Reason) bool {
	switch r {
	case ReasonDamaged, ReasonDefective, ReasonWrongItem, ReasonNotAsDescribed, ReasonOther:
		return true
	}
	return false
}

// RejectReason is the seller's enumerated ground for refusing a return.
type RejectReason string

const (
	RejectNotEligible   RejectReason = "not_eligible"
	RejectItemUsed      RejectReason = "item_used"
	RejectNoDefectFound RejectReason = "no_defect_found"
	RejectOutsidePolicy RejectReason = "outside_policy"
)

func validRejectReason(r RejectReason) bool {
	switch r {
	case RejectNotEligible, RejectItemUsed, RejectNoDefectFound, RejectOutsidePolicy:
		return true
	}
	return false
}

// ReturnRequest is an append-only audit record attached 1:1 to an order item.
// Only status and decision fields mutate after creation.
type ReturnRequest struct {
	ID               string       `json:"id"`
	OrderID          string       `json:"order_id"`
	OrderItemID      string       `json:"order_item_id"`
	UserID           string       `json:"user_id"`
	SellerID         string       `json:"seller_id"`
	Reason           Reason       `json:"reason"`
	Description      string       `json:"description,omitempty"`
	ImageURL         string       `json:"image_url,omitempty"`
	Status           Status       `json:"status"`
	RejectReason     RejectReason `json:"reject_reason,omitempty"`
	EscalationReason string       `json:"escalation_reason,omitempty"`
	AcceptRefund     bool         `json:"accept_refund"`
	IsRefunded       bool         `json:"is_refunded"`
	RequestedAt      time.Time    `json:"requested_at"`
	ApprovedAt       *time.Time   `json:"approved_at,omitempty"`
	Version          int          `json:"version"`
}

// Aggregate interface implementation
func (r *ReturnRequest) GetID() string    { return r.ID }
func (r *ReturnRequest) GetVersion() int  { return r.Version }
func (r *ReturnRequest) SetVersion(v int) { r.Version = v }

// Open reports whether the request still awaits a final decision.
func (r *ReturnRequest) Open() bool {
	switch r.Status {
	case StatusPending, StatusRejected, StatusEscalated:
		return true
	}
	return false
}

// RefundDue reports whether the decision entitles the buyer to a credit.
func (r *ReturnRequest) RefundDue() bool {
	return r.Status == StatusApproved || (r.Status == StatusResolved && r.AcceptRefund)
}

// ApplyEvent applies a single event to the request state (implements aggregate.Aggregate)
func (r *ReturnRequest) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventReturnRequested:
		var data ReturnRequested
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.ID = data.ReturnID
		r.OrderID = data.OrderID
		r.OrderItemID = data.OrderItemID
		r.UserID = data.UserID
		r.SellerID = data.SellerID
		r.Reason = data.Reason
		r.Description = data.Description
		r.ImageURL = data.ImageURL
		r.Status = StatusPending
		r.RequestedAt = data.RequestedAt
	case EventReturnApproved:
		var data ReturnApproved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Status = StatusApproved
		r.ApprovedAt = &data.ApprovedAt
	case EventReturnRejected:
		var data ReturnRejected
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Status = StatusRejected
		r.RejectReason = data.RejectReason
	case EventReturnEscalated:
		var data ReturnEscalated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Status = StatusEscalated
		r.EscalationReason = data.Reason
	case EventReturnResolved:
		var data ReturnResolved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Status = StatusResolved
		r.AcceptRefund = data.AcceptRefund
		if data.AcceptRefund {
			r.IsRefunded = true
		}
	case EventReturnRefunded:
		var data ReturnRefunded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		r.Status = StatusRefunded
		r.IsRefunded = true
	}
	r.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// Load loads a return request by replaying events
func (s *Service) Load(ctx context.Context, returnID string) (*ReturnRequest, error) {
	req, found, err := aggregate.Load(ctx, s.eventStore, returnID, func() *ReturnRequest {
		return &ReturnRequest{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &fault.NotFound{Resource: "return request", ID: returnID}
	}
	return req, nil
}

// CreateParams carries everything needed to open a return request. The item
// status comes from the parent order as loaded by the caller.
type CreateParams struct {
	BuyerID     string
	OrderID     string
	OrderItemID string
	SellerID    string
	ItemStatus  order.Status
	Reason      Reason
	Description string
	ImageURL    string
}

// Create opens a return request for a delivered or completed order item.
func (s *Service) Create(ctx context.Context, p CreateParams) (*ReturnRequest, error) {
	if p.OrderItemID == "" {
		return nil, fault.Validationf("order_item_id is required")
	}
	if !validReason(p.Reason) {
		return nil, fault.Validationf("unknown return reason %q", p.Reason)
	}
	if p.Reason == ReasonOther && p.Description == "" {
		return nil, fault.Validationf("description is required when reason is %q", ReasonOther)
	}
	if !order.IsReturnable(p.ItemStatus) {
		return nil, &fault.IllegalTransition{
			Entity: "order item",
			From:   string(p.ItemStatus),
			To:     string(order.StatusReturnRequested),
			Actor:  string(order.RoleBuyer),
		}
	}

	returnID := uuid.New().String()
	event := ReturnRequested{
		ReturnID:    returnID,
		OrderID:     p.OrderID,
		OrderItemID: p.OrderItemID,
		UserID:      p.BuyerID,
		SellerID:    p.SellerID,
		Reason:      p.Reason,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		RequestedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, returnID, AggregateType, EventReturnRequested, event, 0)
	if err != nil {
		return nil, wrapConflict(err, returnID)
	}

	req := &ReturnRequest{}
	if err := req.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, req)
	return req, nil
}

// Approve records the seller's acceptance of a pending return.
func (s *Service) Approve(ctx context.Context, returnID, sellerID string) (*ReturnRequest, error) {
	req, err := s.Load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if req.SellerID != sellerID {
		return nil, fault.Unauthorizedf("return request %s does not belong to seller %s", returnID, sellerID)
	}
	if req.Status == StatusApproved {
		return req, nil
	}
	if req.Status != StatusPending {
		return nil, illegal(req, StatusApproved, "seller")
	}

	return s.append(ctx, req, EventReturnApproved, ReturnApproved{
		ReturnID:   returnID,
		ApprovedAt: time.Now(),
	})
}

// Reject records the seller's refusal with a mandatory enumerated reason.
func (s *Service) Reject(ctx context.Context, returnID, sellerID string, reason RejectReason) (*ReturnRequest, error) {
	if !validRejectReason(reason) {
		return nil, fault.Validationf("unknown reject reason %q", reason)
	}

	req, err := s.Load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if req.SellerID != sellerID {
		return nil, fault.Unauthorizedf("return request %s does not belong to seller %s", returnID, sellerID)
	}
	if req.Status == StatusRejected {
		return req, nil
	}
	if req.Status != StatusPending {
		return nil, illegal(req, StatusRejected, "seller")
	}

	return s.append(ctx, req, EventReturnRejected, ReturnRejected{
		ReturnID:     returnID,
		RejectReason: reason,
		RejectedAt:   time.Now(),
	})
}

// Escalate lets the buyer contest a rejection. A request that was never
// rejected cannot be escalated.
func (s *Service) Escalate(ctx context.Context, returnID, buyerID, reason string) (*ReturnRequest, error) {
	if reason == "" {
		return nil, fault.Validationf("escalation reason is required")
	}

	req, err := s.Load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if req.UserID != buyerID {
		return nil, fault.Unauthorizedf("return request %s does not belong to buyer %s", returnID, buyerID)
	}
	if req.Status == StatusEscalated {
		return req, nil
	}
	if req.Status != StatusRejected {
		return nil, illegal(req, StatusEscalated, "buyer")
	}

	return s.append(ctx, req, EventReturnEscalated, ReturnEscalated{
		ReturnID:    returnID,
		Reason:      reason,
		EscalatedAt: time.Now(),
	})
}

// Resolve records the arbitrator's decision on an escalated request.
// acceptRefund=true marks the request refundable.
func (s *Service) Resolve(ctx context.Context, returnID string, acceptRefund bool) (*ReturnRequest, error) {
	req, err := s.Load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusResolved && req.AcceptRefund == acceptRefund {
		return req, nil
	}
	if req.Status != StatusEscalated {
		return nil, illegal(req, StatusResolved, "staff")
	}

	return s.append(ctx, req, EventReturnResolved, ReturnResolved{
		ReturnID:     returnID,
		AcceptRefund: acceptRefund,
		ResolvedAt:   time.Now(),
	})
}

// MarkRefunded closes out a refund-due request once the wallet credit went
// through.
func (s *Service) MarkRefunded(ctx context.Context, returnID string) (*ReturnRequest, error) {
	req, err := s.Load(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusRefunded {
		return req, nil
	}
	if !req.RefundDue() {
		return nil, illegal(req, StatusRefunded, "system")
	}

	return s.append(ctx, req, EventReturnRefunded, ReturnRefunded{
		ReturnID:   returnID,
		RefundedAt: time.Now(),
	})
}

func (s *Service) append(ctx context.Context, req *ReturnRequest, eventType string, data any) (*ReturnRequest, error) {
	storedEvent, err := s.eventStore.Append(ctx, req.ID, AggregateType, eventType, data, req.Version)
	if err != nil {
		return nil, wrapConflict(err, req.ID)
	}
	if err := req.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, req)
	return req, nil
}

func (s *Service) maybeSnapshot(ctx context.Context, req *ReturnRequest) {
	if err := aggregate.MaybeSnapshot(ctx, s.eventStore, req, AggregateType); err != nil {
		log.Printf("[Return] Failed to create snapshot for return request %s: %v", req.ID, err)
	}
}

func illegal(req *ReturnRequest, target Status, actor string) error {
	return &fault.IllegalTransition{
		Entity: "return request",
		From:   string(req.Status),
		To:     string(target),
		Actor:  actor,
	}
}

func wrapConflict(err error, returnID string) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return fault.Conflictf("return request %s was modified concurrently", returnID)
	}
	return err
}
