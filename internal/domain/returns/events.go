package returns

import "time"

const (
	EventReturnRequested = "ReturnRequested"
	EventReturnApproved  = "ReturnApproved"
	EventReturnRejected  = "ReturnRejected"
	EventReturnEscalated = "ReturnEscalated"
	EventReturnResolved  = "ReturnResolved"
	EventReturnRefunded  = "ReturnRefunded"
)

type ReturnRequested struct {
	ReturnID    string    `json:"return_id"`
	OrderID     string    `json:"order_id"`
	OrderItemID string    `json:"order_item_id"`
	UserID      string    `json:"user_id"`
	SellerID    string    `json:"seller_id"`
	Reason      Reason    `json:"reason"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type ReturnApproved struct {
	ReturnID   string    `json:"return_id"`
	ApprovedAt time.Time `json:"approved_at"`
}

type ReturnRejected struct {
	ReturnID     string       `json:"return_id"`
	RejectReason RejectReason `json:"reject_reason"`
	RejectedAt   time.Time    `json:"rejected_at"`
}

type ReturnEscalated struct {
	ReturnID    string    `json:"return_id"`
	Reason      string    `json:"reason"`
	EscalatedAt time.Time `json:"escalated_at"`
}

type ReturnResolved struct {
	ReturnID     string    `json:"return_id"`
	AcceptRefund bool      `json:"accept_refund"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

type ReturnRefunded struct {
	ReturnID   string    `json:"return_id"`
	RefundedAt time.Time `json:"refunded_at"`
}
