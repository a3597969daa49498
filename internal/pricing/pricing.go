package pricing

import (
	"sort"
	"sync"

	"github.com/example/marketplace-engine/internal/fault"
)

// Basket is the priceable shape of a checkout: the merchandise subtotal, the
// number of seller shipments and the loyalty points the buyer can spend.
type Basket struct {
	ProductAmount   int
	SellerCount     int
	AvailablePoints int
}

// Quote is a fully computed price breakdown.
type Quote struct {
	ProductAmount    int `json:"product_amount"`
	DeliveryAmount   int `json:"delivery_amount"`
	ProductDiscount  int `json:"product_discount"`
	DeliveryDiscount int `json:"delivery_discount"`
	PointDiscount    int `json:"point_discount"`
	PointsSpent      int `json:"points_spent"`
	Total            int `json:"total"`
}

// DiscountStrategy mutates a quote. Strategies are registered per voucher
// code, so a new promotion is a new strategy, not a new code path.
type DiscountStrategy interface {
	Name() string
	Apply(q *Quote)
}

// FixedPercentVoucher discounts the merchandise subtotal by a percentage.
type FixedPercentVoucher struct {
	Code    string
	Percent int
}

func (v FixedPercentVoucher) Name() string { return v.Code }

func (v FixedPercentVoucher) Apply(q *Quote) {
	q.ProductDiscount += q.ProductAmount * v.Percent / 100
}

// FreeDeliveryVoucher waives the whole delivery fee.
type FreeDeliveryVoucher struct {
	Code string
}

func (v FreeDeliveryVoucher) Name() string { return v.Code }

func (v FreeDeliveryVoucher) Apply(q *Quote) {
	q.DeliveryDiscount = q.DeliveryAmount
}

// Registry maps voucher codes to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]DiscountStrategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]DiscountStrategy)}
}

func (r *Registry) Register(code string, s DiscountStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[code] = s
}

func (r *Registry) Lookup(code string) (DiscountStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[code]
	if !ok {
		return nil, &fault.NotFound{Resource: "voucher", ID: code}
	}
	return s, nil
}

// Codes returns registered voucher codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.strategies))
	for code := range r.strategies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Engine prices baskets. Delivery is charged per seller shipment; loyalty
// points are worth PointValue each and never push the total below zero.
type Engine struct {
	registry     *Registry
	feePerSeller int
	pointValue   int
}

func NewEngine(registry *Registry, feePerSeller, pointValue int) *Engine {
	return &Engine{
		registry:     registry,
		feePerSeller: feePerSeller,
		pointValue:   pointValue,
	}
}

// Price computes a quote. voucherCode may be empty; usePoints spends as many
// of the basket's available points as the remaining total absorbs.
func (e *Engine) Price(basket Basket, voucherCode string, usePoints bool) (*Quote, error) {
	if basket.ProductAmount < 0 {
		return nil, fault.Validationf("product amount cannot be negative")
	}

	q := &Quote{
		ProductAmount:  basket.ProductAmount,
		DeliveryAmount: basket.SellerCount * e.feePerSeller,
	}

	if voucherCode != "" {
		strategy, err := e.registry.Lookup(voucherCode)
		if err != nil {
			return nil, err
		}
		strategy.Apply(q)
	}

	remaining := q.ProductAmount + q.DeliveryAmount - q.ProductDiscount - q.DeliveryDiscount
	if remaining < 0 {
		remaining = 0
	}

	if usePoints && basket.AvailablePoints > 0 && e.pointValue > 0 {
		spendable := remaining / e.pointValue
		if spendable > basket.AvailablePoints {
			spendable = basket.AvailablePoints
		}
		q.PointsSpent = spendable
		q.PointDiscount = spendable * e.pointValue
	}

	q.Total = remaining - q.PointDiscount
	return q, nil
}
