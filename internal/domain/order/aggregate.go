package order

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/example/marketplace-engine/internal/domain/aggregate"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "Order"

type Status string

const (
	StatusCreated          Status = "created"
	StatusConfirmed        Status = "confirmed"
	StatusRejected         Status = "rejected"
	StatusPreparing        Status = "preparing"
	StatusAwaitingPayment  Status = "awaiting_payment"
	StatusPaymentFailed    Status = "payment_failed"
	StatusReadyForShipment Status = "ready_for_shipment"
	StatusPaid             Status = "paid"
	StatusShipped          Status = "shipped"
	StatusDelivered        Status = "delivered"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusReturnRequested  Status = "return_requested"
	StatusReturned         Status = "returned"
	StatusRefunded         Status = "refunded"
	StatusDeliveryFailed   Status = "delivery_failed"
)

type PaymentMethod string

const (
	PaymentOnline         PaymentMethod = "online"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Role is the capacity an actor acts in when driving the state machine.
// RoleSystem is reserved for the payment and return workflows and is never
// reachable from the public status surface.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Actor identifies who is requesting a transition.
type Actor struct {
	UserID string
	Role   Role
}

// transitions is the single authorization table: per role, the set of
// transitions that role may perform. Everything not listed is rejected.
var transitions = map[Role]map[Status][]Status{
	RoleSeller: {
		StatusCreated:          {StatusConfirmed, StatusRejected},
		StatusPaid:             {StatusConfirmed, StatusRejected},
		StatusConfirmed:        {StatusPreparing, StatusCancelled},
		StatusPreparing:        {StatusReadyForShipment, StatusCancelled},
		StatusReadyForShipment: {StatusShipped},
		StatusShipped:          {StatusDelivered, StatusDeliveryFailed},
		StatusDelivered:        {StatusDeliveryFailed},
	},
	RoleBuyer: {
		StatusCreated:       {StatusCancelled},
		StatusPaid:          {StatusCancelled},
		StatusPaymentFailed: {StatusCancelled},
		StatusConfirmed:     {StatusCancelled},
		StatusPreparing:     {StatusCancelled},
		StatusDelivered:     {StatusReturnRequested, StatusCompleted},
		StatusCompleted:     {StatusReturnRequested},
	},
	RoleStaff: {
		StatusDeliveryFailed: {StatusRefunded},
	},
	RoleSystem: {
		StatusCreated:         {StatusAwaitingPayment},
		StatusAwaitingPayment: {StatusPaid, StatusPaymentFailed},
		StatusPaymentFailed:   {StatusAwaitingPayment},
		StatusReturnRequested: {StatusReturned, StatusCompleted},
		StatusReturned:        {StatusRefunded},
		StatusDelivered:       {StatusReturnRequested},
		StatusCompleted:       {StatusReturnRequested},
	},
}

func init() {
	// admin may do anything buyer, seller or staff may do
	admin := make(map[Status][]Status)
	for _, role := range []Role{RoleBuyer, RoleSeller, RoleStaff} {
		for from, targets := range transitions[role] {
			for _, to := range targets {
				if !containsStatus(admin[from], to) {
					admin[from] = append(admin[from], to)
				}
			}
		}
	}
	transitions[RoleAdmin] = admin
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the role may move an order from one status
// to another.
func CanTransition(role Role, from, to Status) bool {
	allowed, exists := transitions[role]
	if !exists {
		return false
	}
	return containsStatus(allowed[from], to)
}

// IsTerminal reports whether the status ends the fulfillment flow. Completed
// may still enter the return workflow; DeliveryFailed is not terminal since
// staff can arbitrate it to Refunded.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Item is one product position within an order. Status starts mirroring the
// order status and is overridden per item by the return workflow.
type Item struct {
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	SellerID    string `json:"seller_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"`
	Status      Status `json:"status"`
}

type Order struct {
	ID               string        `json:"id"`
	BuyerID          string        `json:"buyer_id"`
	AddressID        string        `json:"address_id"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	IsPaid           bool          `json:"is_paid"`
	Status           Status        `json:"status"`
	ProductAmount    int           `json:"product_amount"`
	DeliveryAmount   int           `json:"delivery_amount"`
	ProductDiscount  int           `json:"product_discount"`
	DeliveryDiscount int           `json:"delivery_discount"`
	PointDiscount    int           `json:"point_discount"`
	TotalPrice       int           `json:"total_price"`
	Items            []Item        `json:"items"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Version          int           `json:"version"` // Current event version
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

// ItemByID returns the item with the given id, or nil
func (o *Order) ItemByID(orderItemID string) *Item {
	for i := range o.Items {
		if o.Items[i].OrderItemID == orderItemID {
			return &o.Items[i]
		}
	}
	return nil
}

// HasSeller reports whether any item in the order belongs to the seller
func (o *Order) HasSeller(sellerID string) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.BuyerID = data.BuyerID
		o.AddressID = data.AddressID
		o.PaymentMethod = data.PaymentMethod
		o.Items = data.Items
		o.ProductAmount = data.ProductAmount
		o.DeliveryAmount = data.DeliveryAmount
		o.ProductDiscount = data.ProductDiscount
		o.DeliveryDiscount = data.DeliveryDiscount
		o.PointDiscount = data.PointDiscount
		o.TotalPrice = data.TotalPrice
		o.Status = StatusCreated
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventStatusChanged:
		var data StatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = data.To
		// items without an overriding status follow the order
		for i := range o.Items {
			if o.Items[i].Status == data.From {
				o.Items[i].Status = data.To
			}
		}
		o.UpdatedAt = data.ChangedAt
	case EventPaymentRecorded:
		var data PaymentRecorded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if data.Success {
			o.IsPaid = true
		}
		o.UpdatedAt = data.RecordedAt
	case EventItemStatusChanged:
		var data ItemStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if item := o.ItemByID(data.OrderItemID); item != nil {
			item.Status = data.To
		}
		o.UpdatedAt = data.ChangedAt
	}
	o.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// Load loads an order by replaying events, using snapshot if available
func (s *Service) Load(ctx context.Context, orderID string) (*Order, error) {
	order, found, err := aggregate.Load(ctx, s.eventStore, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &fault.NotFound{Resource: "order", ID: orderID}
	}
	return order, nil
}

// Draft is a fully priced order ready to be placed. Amounts are computed by
// the checkout command handler before the draft reaches the state machine.
type Draft struct {
	BuyerID          string
	AddressID        string
	PaymentMethod    PaymentMethod
	Items            []Item
	ProductAmount    int
	DeliveryAmount   int
	ProductDiscount  int
	DeliveryDiscount int
	PointDiscount    int
	TotalPrice       int
}

// Place records a new order as a single event append. All items land in one
// order or none do.
func (s *Service) Place(ctx context.Context, draft Draft) (*Order, error) {
	if len(draft.Items) == 0 {
		return nil, fault.Validationf("order must have at least one item")
	}
	if draft.BuyerID == "" {
		return nil, fault.Validationf("buyer_id is required")
	}
	if draft.PaymentMethod != PaymentOnline && draft.PaymentMethod != PaymentCashOnDelivery {
		return nil, fault.Validationf("unknown payment method %q", draft.PaymentMethod)
	}

	orderID := uuid.New().String()
	now := time.Now()

	items := make([]Item, len(draft.Items))
	copy(items, draft.Items)
	for i := range items {
		if items[i].OrderItemID == "" {
			items[i].OrderItemID = uuid.New().String()
		}
		items[i].Status = StatusCreated
	}

	event := OrderPlaced{
		OrderID:          orderID,
		BuyerID:          draft.BuyerID,
		AddressID:        draft.AddressID,
		PaymentMethod:    draft.PaymentMethod,
		Items:            items,
		ProductAmount:    draft.ProductAmount,
		DeliveryAmount:   draft.DeliveryAmount,
		ProductDiscount:  draft.ProductDiscount,
		DeliveryDiscount: draft.DeliveryDiscount,
		PointDiscount:    draft.PointDiscount,
		TotalPrice:       draft.TotalPrice,
		PlacedAt:         now,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderPlaced, event, 0)
	if err != nil {
		return nil, wrapConflict(err, orderID)
	}

	order := &Order{}
	if err := order.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, order)
	return order, nil
}

// UpdateStatus moves an order to the target status on behalf of the actor.
// Requesting the status the order is already in succeeds without appending an
// event. Anything outside the actor's allow-list fails without mutation.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target Status, actor Actor) (*Order, error) {
	order, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(order, actor); err != nil {
		return nil, err
	}

	if order.Status == target {
		return order, nil
	}

	if !CanTransition(actor.Role, order.Status, target) {
		return nil, &fault.IllegalTransition{
			Entity: "order",
			From:   string(order.Status),
			To:     string(target),
			Actor:  string(actor.Role),
		}
	}

	return s.appendStatusChange(ctx, order, target, actor, "")
}

// authorize checks that the actor may touch this order at all. Role gating of
// the specific transition happens in the allow-list.
func (s *Service) authorize(order *Order, actor Actor) error {
	switch actor.Role {
	case RoleBuyer:
		if order.BuyerID != actor.UserID {
			return fault.Unauthorizedf("order %s does not belong to buyer %s", order.ID, actor.UserID)
		}
	case RoleSeller:
		if !order.HasSeller(actor.UserID) {
			return fault.Unauthorizedf("order %s has no items sold by %s", order.ID, actor.UserID)
		}
	case RoleStaff, RoleAdmin, RoleSystem:
		// unrestricted
	default:
		return fault.Unauthorizedf("unknown role %q", actor.Role)
	}
	return nil
}

func (s *Service) appendStatusChange(ctx context.Context, order *Order, target Status, actor Actor, reason string) (*Order, error) {
	event := StatusChanged{
		OrderID:   order.ID,
		From:      order.Status,
		To:        target,
		Actor:     actor.Role,
		ActorID:   actor.UserID,
		Reason:    reason,
		ChangedAt: time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, order.ID, AggregateType, EventStatusChanged, event, order.Version)
	if err != nil {
		return nil, wrapConflict(err, order.ID)
	}

	if err := order.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, order)
	return order, nil
}

// RequestPayment moves a freshly created online order into AwaitingPayment.
func (s *Service) RequestPayment(ctx context.Context, orderID string) (*Order, error) {
	order, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != PaymentOnline {
		return nil, fault.Validationf("order %s is not an online payment order", orderID)
	}
	if order.Status == StatusAwaitingPayment {
		return order, nil
	}
	if !CanTransition(RoleSystem, order.Status, StatusAwaitingPayment) {
		return nil, &fault.IllegalTransition{
			Entity: "order",
			From:   string(order.Status),
			To:     string(StatusAwaitingPayment),
			Actor:  string(RoleSystem),
		}
	}
	return s.appendStatusChange(ctx, order, StatusAwaitingPayment, Actor{Role: RoleSystem}, "")
}

// RecordPayment applies the payment provider's verdict. Success sets IsPaid
// and moves the order to Paid; failure moves it to PaymentFailed. This is the
// only path that ever touches IsPaid. Replaying a verdict the order already
// reflects is a no-op.
func (s *Service) RecordPayment(ctx context.Context, orderID string, success bool) (*Order, error) {
	order, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	target := StatusPaymentFailed
	if success {
		target = StatusPaid
	}
	if order.Status == target && order.IsPaid == success {
		return order, nil
	}
	if !CanTransition(RoleSystem, order.Status, target) {
		return nil, &fault.IllegalTransition{
			Entity: "order",
			From:   string(order.Status),
			To:     string(target),
			Actor:  string(RoleSystem),
		}
	}

	recorded := PaymentRecorded{
		OrderID:    orderID,
		Success:    success,
		RecordedAt: time.Now(),
	}
	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventPaymentRecorded, recorded, order.Version)
	if err != nil {
		return nil, wrapConflict(err, orderID)
	}
	if err := order.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}

	return s.appendStatusChange(ctx, order, target, Actor{Role: RoleSystem}, "")
}

// SetItemStatus overrides a single item's status. Used by the return workflow
// to mark items ReturnRequested, Returned or Refunded without moving the
// whole order.
func (s *Service) SetItemStatus(ctx context.Context, orderID, orderItemID string, target Status) (*Order, error) {
	order, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	item := order.ItemByID(orderItemID)
	if item == nil {
		return nil, &fault.NotFound{Resource: "order item", ID: orderItemID}
	}
	if item.Status == target {
		return order, nil
	}

	event := ItemStatusChanged{
		OrderID:     orderID,
		OrderItemID: orderItemID,
		To:          target,
		ChangedAt:   time.Now(),
	}
	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventItemStatusChanged, event, order.Version)
	if err != nil {
		return nil, wrapConflict(err, orderID)
	}

	if err := order.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, order)
	return order, nil
}

// CanRate reports whether the item is eligible for rating.
func CanRate(orderStatus Status, item Item) bool {
	return orderStatus == StatusCompleted && item.Status == StatusCompleted
}

// IsReturnable reports whether a return request may start from the item state.
func IsReturnable(itemStatus Status) bool {
	return itemStatus == StatusDelivered || itemStatus == StatusCompleted
}

func (s *Service) maybeSnapshot(ctx context.Context, order *Order) {
	if err := aggregate.MaybeSnapshot(ctx, s.eventStore, order, AggregateType); err != nil {
		log.Printf("[Order] Failed to create snapshot for order %s: %v", order.ID, err)
	}
}

func wrapConflict(err error, orderID string) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return fault.Conflictf("order %s was modified concurrently", orderID)
	}
	return err
}
