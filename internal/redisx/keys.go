package redisx

import "time"

const (
	// Dedup payment callbacks: dedup:payment:{order_id}:{outcome}
	KeyPaymentCallback = "dedup:payment:%s:%t"

	// Cache order status: order_status:{order_id} -> status string
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
)
