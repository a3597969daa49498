package command

import (
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
)

// AddToCart puts a product into the customer's cart, merging with an
// existing line for the same product.
type AddToCart struct {
	UserID    string `json:"-"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartQuantity sets a cart line to an absolute quantity.
type UpdateCartQuantity struct {
	UserID   string `json:"-"`
	LineID   string `json:"-"`
	Quantity int    `json:"quantity"`
}

// RemoveFromCart drops a cart line.
type RemoveFromCart struct {
	UserID string `json:"-"`
	LineID string `json:"-"`
}

// BuyNowItem is an ad-hoc single-product purchase that bypasses the cart.
type BuyNowItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Checkout creates an order either from selected cart lines or from a
// buy-now item. Exactly one of CartLineIDs / BuyNow must be set.
type Checkout struct {
	BuyerID          string              `json:"-"`
	AddressID        string              `json:"address_id"`
	PaymentMethod    order.PaymentMethod `json:"payment_method"`
	CartLineIDs      []string            `json:"cart_line_ids,omitempty"`
	BuyNow           *BuyNowItem         `json:"buy_now,omitempty"`
	VoucherCode      string              `json:"voucher_code,omitempty"`
	UseLoyaltyPoints bool                `json:"use_loyalty_points,omitempty"`
}

// UpdateOrderStatus drives the order state machine on behalf of a session
// actor. The actor comes from validated claims, never from the request body.
type UpdateOrderStatus struct {
	OrderID   string       `json:"-"`
	Target    order.Status `json:"target_status"`
	ActorID   string       `json:"-"`
	ActorRole order.Role   `json:"-"`
}

// PaymentCallback is the out-of-band verdict from the payment gateway.
type PaymentCallback struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
}

// RetryPayment reissues a payment URL for a failed online payment.
type RetryPayment struct {
	OrderID string `json:"-"`
	BuyerID string `json:"-"`
}

// CreateReturnRequest opens a return for a delivered or completed order item.
type CreateReturnRequest struct {
	BuyerID     string         `json:"-"`
	OrderID     string         `json:"order_id"`
	OrderItemID string         `json:"order_item_id"`
	Reason      returns.Reason `json:"reason"`
	Description string         `json:"description,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
}

// ApproveReturn is the seller accepting a pending return.
type ApproveReturn struct {
	ReturnID string `json:"-"`
	SellerID string `json:"-"`
}

// RejectReturn is the seller refusing a pending return.
type RejectReturn struct {
	ReturnID     string               `json:"-"`
	SellerID     string               `json:"-"`
	RejectReason returns.RejectReason `json:"reject_reason"`
}

// EscalateReturn is the buyer contesting a rejection.
type EscalateReturn struct {
	ReturnID string `json:"-"`
	BuyerID  string `json:"-"`
	Reason   string `json:"reason"`
}

// ResolveReturn is the arbitrator's decision on an escalated return.
type ResolveReturn struct {
	ReturnID     string `json:"-"`
	AcceptRefund bool   `json:"accept_refund"`
}
