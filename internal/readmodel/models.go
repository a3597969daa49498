package readmodel

import "time"

// Collection names used across the read store
const (
	CollectionCarts   = "carts"
	CollectionOrders  = "orders"
	CollectionReturns = "returns"
	CollectionUsers   = "users"
)

type CartLineReadModel struct {
	LineID    string `json:"line_id"`
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

type CartReadModel struct {
	ID     string              `json:"id"`
	UserID string              `json:"user_id"`
	Lines  []CartLineReadModel `json:"lines"`
	Total  int                 `json:"total"`
}

type OrderItemReadModel struct {
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	SellerID    string `json:"seller_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"`
	Status      string `json:"status"`
	CanRate     bool   `json:"can_rate"`
}

type OrderReadModel struct {
	ID               string               `json:"id"`
	BuyerID          string               `json:"buyer_id"`
	AddressID        string               `json:"address_id"`
	PaymentMethod    string               `json:"payment_method"`
	IsPaid           bool                 `json:"is_paid"`
	Status           string               `json:"status"`
	ProductAmount    int                  `json:"product_amount"`
	DeliveryAmount   int                  `json:"delivery_amount"`
	ProductDiscount  int                  `json:"product_discount"`
	DeliveryDiscount int                  `json:"delivery_discount"`
	PointDiscount    int                  `json:"point_discount"`
	TotalPrice       int                  `json:"total_price"`
	Items            []OrderItemReadModel `json:"items"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type ReturnRequestReadModel struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"order_id"`
	OrderItemID      string     `json:"order_item_id"`
	UserID           string     `json:"user_id"`
	SellerID         string     `json:"seller_id"`
	Reason           string     `json:"reason"`
	Description      string     `json:"description"`
	ImageURL         string     `json:"image_url,omitempty"`
	Status           string     `json:"status"`
	RejectReason     string     `json:"reject_reason,omitempty"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
	AcceptRefund     bool       `json:"accept_refund"`
	IsRefunded       bool       `json:"is_refunded"`
	RequestedAt      time.Time  `json:"requested_at"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
}

type UserReadModel struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
