package cart

import "time"

const (
	EventLineAdded           = "CartLineAdded"
	EventLineQuantityChanged = "CartLineQuantityChanged"
	EventLineRemoved         = "CartLineRemoved"
)

type LineAdded struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	LineID    string    `json:"line_id"`
	ProductID string    `json:"product_id"`
	SellerID  string    `json:"seller_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int       `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}

type LineQuantityChanged struct {
	CartID    string    `json:"cart_id"`
	LineID    string    `json:"line_id"`
	Quantity  int       `json:"quantity"` // new absolute quantity
	ChangedAt time.Time `json:"changed_at"`
}

type LineRemoved struct {
	CartID    string    `json:"cart_id"`
	LineID    string    `json:"line_id"`
	RemovedAt time.Time `json:"removed_at"`
}
