package order

import "time"

const (
	EventOrderPlaced       = "OrderPlaced"
	EventStatusChanged     = "OrderStatusChanged"
	EventPaymentRecorded   = "OrderPaymentRecorded"
	EventItemStatusChanged = "OrderItemStatusChanged"
)

type OrderPlaced struct {
	OrderID          string        `json:"order_id"`
	BuyerID          string        `json:"buyer_id"`
	AddressID        string        `json:"address_id"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	Items            []Item        `json:"items"`
	ProductAmount    int           `json:"product_amount"`
	DeliveryAmount   int           `json:"delivery_amount"`
	ProductDiscount  int           `json:"product_discount"`
	DeliveryDiscount int           `json:"delivery_discount"`
	PointDiscount    int           `json:"point_discount"`
	TotalPrice       int           `json:"total_price"`
	PlacedAt         time.Time     `json:"placed_at"`
}

type StatusChanged struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     Role      `json:"actor"`
	ActorID   string    `json:"actor_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type PaymentRecorded struct {
	OrderID    string    `json:"order_id"`
	Success    bool      `json:"success"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ItemStatusChanged struct {
	OrderID     string    `json:"order_id"`
	OrderItemID string    `json:"order_item_id"`
	To          Status    `json:"to"`
	ChangedAt   time.Time `json:"changed_at"`
}
