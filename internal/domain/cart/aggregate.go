package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/example/marketplace-engine/internal/domain/aggregate"
	"github.com/example/marketplace-engine/internal/domain/catalog"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "Cart"

// UnknownSeller is the grouping bucket for lines whose product carries no
// seller id. Per-seller shipping totals rely on this key being stable.
const UnknownSeller = "unknown"

// Line is one product entry in a customer's cart. UnitPrice is the catalog
// price captured when the line was created.
type Line struct {
	LineID    string `json:"line_id"`
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

// Cart is owned by exactly one customer; lines keep insertion order.
type Cart struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Lines   []Line `json:"lines"`
	Version int    `json:"version"`
}

// Aggregate interface implementation
func (c *Cart) GetID() string    { return c.ID }
func (c *Cart) GetVersion() int  { return c.Version }
func (c *Cart) SetVersion(v int) { c.Version = v }

// GetCartID returns the cart ID for a user (one cart per customer)
func GetCartID(userID string) string {
	return "cart-" + userID
}

// LineByID returns the line with the given id, or nil
func (c *Cart) LineByID(lineID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].LineID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// LineByProduct returns the line holding the given product, or nil
func (c *Cart) LineByProduct(productID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Total returns the sum of quantity times unit price over all lines
func (c *Cart) Total() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity * l.UnitPrice
	}
	return total
}

// SellerGroup is one seller's slice of the cart
type SellerGroup struct {
	SellerID string `json:"seller_id"`
	Lines    []Line `json:"lines"`
	Subtotal int    `json:"subtotal"`
}

// GroupBySeller splits the cart into per-seller groups, sorted by seller id
// for deterministic output. Lines without a seller fall into the
// UnknownSeller bucket.
func GroupBySeller(c *Cart) []SellerGroup {
	bySeller := make(map[string][]Line)
	for _, l := range c.Lines {
		key := l.SellerID
		if key == "" {
			key = UnknownSeller
		}
		bySeller[key] = append(bySeller[key], l)
	}

	keys := make([]string, 0, len(bySeller))
	for k := range bySeller {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]SellerGroup, 0, len(keys))
	for _, k := range keys {
		subtotal := 0
		for _, l := range bySeller[k] {
			subtotal += l.Quantity * l.UnitPrice
		}
		groups = append(groups, SellerGroup{SellerID: k, Lines: bySeller[k], Subtotal: subtotal})
	}
	return groups
}

// ApplyEvent applies a single event to the cart state (implements aggregate.Aggregate)
func (c *Cart) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventLineAdded:
		var data LineAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CartID
		c.UserID = data.UserID
		c.Lines = append(c.Lines, Line{
			LineID:    data.LineID,
			ProductID: data.ProductID,
			SellerID:  data.SellerID,
			Quantity:  data.Quantity,
			UnitPrice: data.UnitPrice,
		})
	case EventLineQuantityChanged:
		var data LineQuantityChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if line := c.LineByID(data.LineID); line != nil {
			line.Quantity = data.Quantity
		}
	case EventLineRemoved:
		var data LineRemoved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		for i := range c.Lines {
			if c.Lines[i].LineID == data.LineID {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				break
			}
		}
	}
	c.Version = event.Version
	return nil
}

// Service reconciles cart mutations against the current stock ledger
type Service struct {
	eventStore store.EventStoreInterface
	ledger     *catalog.Ledger
}

func NewService(es store.EventStoreInterface, ledger *catalog.Ledger) *Service {
	return &Service{eventStore: es, ledger: ledger}
}

// Load returns the customer's cart, empty if no events exist yet
func (s *Service) Load(ctx context.Context, userID string) (*Cart, error) {
	cartID := GetCartID(userID)
	c, found, err := aggregate.Load(ctx, s.eventStore, cartID, func() *Cart {
		return &Cart{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return &Cart{ID: cartID, UserID: userID}, nil
	}
	return c, nil
}

// AddItem validates the requested quantity against fresh catalog stock and
// upserts a line, merging with an existing line for the same product. The
// returned cart reflects the mutation.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if productID == "" {
		return nil, fault.Validationf("product_id is required")
	}
	if quantity < 1 {
		return nil, fault.Validationf("quantity must be at least 1, got %d", quantity)
	}

	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.ledger.Snapshot(ctx, productID)
	if err != nil {
		return nil, err
	}
	avail := catalog.Available(snapshot)

	inCart := 0
	existing := c.LineByProduct(productID)
	if existing != nil {
		inCart = existing.Quantity
	}

	if quantity+inCart > avail {
		remaining := avail - inCart
		if remaining < 0 {
			remaining = 0
		}
		return nil, &fault.OutOfStock{
			ProductID: productID,
			Requested: quantity,
			Remaining: remaining,
			InCart:    inCart,
		}
	}

	var appended *store.Event
	if existing != nil {
		appended, err = s.eventStore.Append(ctx, c.ID, AggregateType, EventLineQuantityChanged, LineQuantityChanged{
			CartID:    c.ID,
			LineID:    existing.LineID,
			Quantity:  inCart + quantity,
			ChangedAt: time.Now(),
		}, c.Version)
	} else {
		appended, err = s.eventStore.Append(ctx, c.ID, AggregateType, EventLineAdded, LineAdded{
			CartID:    c.ID,
			UserID:    userID,
			LineID:    uuid.New().String(),
			ProductID: productID,
			SellerID:  snapshot.SellerID,
			Quantity:  quantity,
			UnitPrice: snapshot.Price,
			AddedAt:   time.Now(),
		}, c.Version)
	}
	if err != nil {
		return nil, wrapConflict(err, c.ID)
	}

	if err := c.ApplyEvent(*appended); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, c)
	return c, nil
}

// UpdateQuantity sets a line to an absolute quantity. The line's own current
// quantity is excluded from the stock comparison: newQuantity is checked
// directly against available stock. Re-applying the same quantity is a no-op.
func (s *Service) UpdateQuantity(ctx context.Context, userID, lineID string, newQuantity int) (*Cart, error) {
	if newQuantity < 1 {
		return nil, fault.Validationf("quantity must be at least 1, got %d", newQuantity)
	}

	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	line := c.LineByID(lineID)
	if line == nil {
		return nil, &fault.NotFound{Resource: "cart line", ID: lineID}
	}

	avail, err := s.ledger.AvailableStock(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if newQuantity > avail {
		return nil, &fault.OutOfStock{
			ProductID: line.ProductID,
			Requested: newQuantity,
			Remaining: avail,
			InCart:    line.Quantity,
		}
	}

	// Re-applying the current quantity is a retry, not a change
	if line.Quantity == newQuantity {
		return c, nil
	}

	appended, err := s.eventStore.Append(ctx, c.ID, AggregateType, EventLineQuantityChanged, LineQuantityChanged{
		CartID:    c.ID,
		LineID:    lineID,
		Quantity:  newQuantity,
		ChangedAt: time.Now(),
	}, c.Version)
	if err != nil {
		return nil, wrapConflict(err, c.ID)
	}

	if err := c.ApplyEvent(*appended); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, c)
	return c, nil
}

// RemoveItem drops a line. Removing a nonexistent line is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) (*Cart, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if c.LineByID(lineID) == nil {
		return c, nil
	}

	appended, err := s.eventStore.Append(ctx, c.ID, AggregateType, EventLineRemoved, LineRemoved{
		CartID:    c.ID,
		LineID:    lineID,
		RemovedAt: time.Now(),
	}, c.Version)
	if err != nil {
		return nil, wrapConflict(err, c.ID)
	}

	if err := c.ApplyEvent(*appended); err != nil {
		return nil, err
	}
	s.maybeSnapshot(ctx, c)
	return c, nil
}

// Clear removes every line as an independent removal, so each one is
// observable on its own. A failed removal does not stop the rest; the first
// failure is reported once after the sweep.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	lineIDs := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		lineIDs = append(lineIDs, l.LineID)
	}

	var firstErr error
	for _, lineID := range lineIDs {
		appended, err := s.eventStore.Append(ctx, c.ID, AggregateType, EventLineRemoved, LineRemoved{
			CartID:    c.ID,
			LineID:    lineID,
			RemovedAt: time.Now(),
		}, c.Version)
		if err != nil {
			if firstErr == nil {
				firstErr = wrapConflict(err, c.ID)
			}
			continue
		}
		if err := c.ApplyEvent(*appended); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.maybeSnapshot(ctx, c)
	return c, firstErr
}

func (s *Service) maybeSnapshot(ctx context.Context, c *Cart) {
	if err := aggregate.MaybeSnapshot(ctx, s.eventStore, c, AggregateType); err != nil {
		log.Printf("[Cart] Failed to create snapshot for cart %s: %v", c.ID, err)
	}
}

func wrapConflict(err error, cartID string) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return fault.Conflictf("cart %s was modified concurrently", cartID)
	}
	return err
}
