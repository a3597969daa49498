package catalog

import (
	"context"

	"github.com/example/marketplace-engine/internal/gateway"
)

// Ledger is a read-only view over the external catalog. It never caches:
// availability is computed from a snapshot fetched at call time, because a
// stale figure here turns a polite OutOfStock into an oversold order.
type Ledger struct {
	catalog gateway.CatalogAPI
}

func NewLedger(catalog gateway.CatalogAPI) *Ledger {
	return &Ledger{catalog: catalog}
}

// Snapshot fetches the current product snapshot from the catalog.
func (l *Ledger) Snapshot(ctx context.Context, productID string) (*gateway.ProductSnapshot, error) {
	return l.catalog.Product(ctx, productID)
}

// AvailableStock returns quantity minus quantity sold, clamped at zero.
func (l *Ledger) AvailableStock(ctx context.Context, productID string) (int, error) {
	snapshot, err := l.catalog.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	return Available(snapshot), nil
}

// Available computes the sellable stock from a snapshot.
func Available(s *gateway.ProductSnapshot) int {
	avail := s.Quantity - s.QuantitySold
	if avail < 0 {
		return 0
	}
	return avail
}
