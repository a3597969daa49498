package catalog

import (
	"context"
	"testing"

	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves canned product snapshots
type fakeCatalog struct {
	products map[string]*gateway.ProductSnapshot
	calls    int
}

func (f *fakeCatalog) Product(ctx context.Context, productID string) (*gateway.ProductSnapshot, error) {
	f.calls++
	p, ok := f.products[productID]
	if !ok {
		return nil, &fault.NotFound{Resource: "product", ID: productID}
	}
	return p, nil
}

func TestLedger_AvailableStock(t *testing.T) {
	fake := &fakeCatalog{products: map[string]*gateway.ProductSnapshot{
		"P1": {ProductID: "P1", Price: 1000, Quantity: 5, QuantitySold: 3},
	}}
	ledger := NewLedger(fake)

	avail, err := ledger.AvailableStock(context.Background(), "P1")

	require.NoError(t, err)
	assert.Equal(t, 2, avail)
}

func TestLedger_AvailableStock_ClampedAtZero(t *testing.T) {
	fake := &fakeCatalog{products: map[string]*gateway.ProductSnapshot{
		"P1": {ProductID: "P1", Quantity: 3, QuantitySold: 7},
	}}
	ledger := NewLedger(fake)

	avail, err := ledger.AvailableStock(context.Background(), "P1")

	require.NoError(t, err)
	assert.Equal(t, 0, avail)
}

func TestLedger_AvailableStock_ProductNotFound(t *testing.T) {
	fake := &fakeCatalog{products: map[string]*gateway.ProductSnapshot{}}
	ledger := NewLedger(fake)

	_, err := ledger.AvailableStock(context.Background(), "missing")

	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestLedger_FetchesFreshSnapshotPerCall(t *testing.T) {
	fake := &fakeCatalog{products: map[string]*gateway.ProductSnapshot{
		"P1": {ProductID: "P1", Quantity: 5, QuantitySold: 0},
	}}
	ledger := NewLedger(fake)
	ctx := context.Background()

	_, err := ledger.AvailableStock(ctx, "P1")
	require.NoError(t, err)

	fake.products["P1"].QuantitySold = 4
	avail, err := ledger.AvailableStock(ctx, "P1")

	require.NoError(t, err)
	assert.Equal(t, 1, avail)
	assert.Equal(t, 2, fake.calls)
}
