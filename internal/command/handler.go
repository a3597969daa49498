package command

import (
	"context"
	"log"

	"github.com/example/marketplace-engine/internal/domain/cart"
	"github.com/example/marketplace-engine/internal/domain/catalog"
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/gateway"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/pricing"
	"github.com/example/marketplace-engine/internal/readmodel"
)

// Cache is the Redis-backed side channel: payment-callback dedup and the
// order status cache. Both are best-effort.
type Cache interface {
	MarkPaymentOnce(ctx context.Context, orderID string, success bool) (bool, error)
	SetOrderStatus(ctx context.Context, orderID, status string) error
}

type Handler struct {
	cartSvc   *cart.Service
	orderSvc  *order.Service
	returnSvc *returns.Service
	ledger    *catalog.Ledger
	pricer    *pricing.Engine
	payment   gateway.PaymentAPI
	wallet    gateway.WalletAPI
	cache     Cache
	readStore store.ReadStoreInterface
}

func NewHandler(
	cartSvc *cart.Service,
	orderSvc *order.Service,
	returnSvc *returns.Service,
	ledger *catalog.Ledger,
	pricer *pricing.Engine,
	payment gateway.PaymentAPI,
	wallet gateway.WalletAPI,
	cache Cache,
	readStore store.ReadStoreInterface,
) *Handler {
	return &Handler{
		cartSvc:   cartSvc,
		orderSvc:  orderSvc,
		returnSvc: returnSvc,
		ledger:    ledger,
		pricer:    pricer,
		payment:   payment,
		wallet:    wallet,
		cache:     cache,
		readStore: readStore,
	}
}

// Cart commands delegate to the cart service; stock gating lives there.

func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Cart, error) {
	return h.cartSvc.AddItem(ctx, cmd.UserID, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) UpdateCartQuantity(ctx context.Context, cmd UpdateCartQuantity) (*cart.Cart, error) {
	return h.cartSvc.UpdateQuantity(ctx, cmd.UserID, cmd.LineID, cmd.Quantity)
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (*cart.Cart, error) {
	return h.cartSvc.RemoveItem(ctx, cmd.UserID, cmd.LineID)
}

// CheckoutResult carries the placed order and, for online payment, the URL
// the buyer completes the payment on. An empty URL on an online order means
// issuance failed and the buyer retries via the retry-payment surface.
type CheckoutResult struct {
	Order      *order.Order `json:"order"`
	PaymentURL string       `json:"payment_url,omitempty"`
}

// Checkout validates every requested line against fresh catalog stock before
// a single event is appended: any stale line fails the whole checkout and no
// order exists afterwards.
func (h *Handler) Checkout(ctx context.Context, cmd Checkout) (*CheckoutResult, error) {
	if cmd.AddressID == "" {
		return nil, fault.Validationf("address_id is required")
	}
	if cmd.BuyNow != nil && len(cmd.CartLineIDs) > 0 {
		return nil, fault.Validationf("buy_now and cart_line_ids are mutually exclusive")
	}
	if cmd.BuyNow == nil && len(cmd.CartLineIDs) == 0 {
		return nil, fault.Validationf("either buy_now or cart_line_ids is required")
	}

	items, fromCart, err := h.assembleItems(ctx, cmd)
	if err != nil {
		return nil, err
	}

	quote, err := h.price(ctx, cmd, items)
	if err != nil {
		return nil, err
	}

	placed, err := h.orderSvc.Place(ctx, order.Draft{
		BuyerID:          cmd.BuyerID,
		AddressID:        cmd.AddressID,
		PaymentMethod:    cmd.PaymentMethod,
		Items:            items,
		ProductAmount:    quote.ProductAmount,
		DeliveryAmount:   quote.DeliveryAmount,
		ProductDiscount:  quote.ProductDiscount,
		DeliveryDiscount: quote.DeliveryDiscount,
		PointDiscount:    quote.PointDiscount,
		TotalPrice:       quote.Total,
	})
	if err != nil {
		return nil, err
	}
	h.cacheStatus(ctx, placed)

	// The order exists now; cart cleanup is best-effort
	for _, lineID := range fromCart {
		if _, err := h.cartSvc.RemoveItem(ctx, cmd.BuyerID, lineID); err != nil {
			log.Printf("[Checkout] failed to remove cart line %s after placing order %s: %v", lineID, placed.ID, err)
		}
	}

	result := &CheckoutResult{Order: placed}
	if cmd.PaymentMethod == order.PaymentOnline {
		result.PaymentURL = h.issuePaymentURL(ctx, placed)
	}
	return result, nil
}

// assembleItems resolves the command into priced order items, checking every
// line against fresh available stock first.
func (h *Handler) assembleItems(ctx context.Context, cmd Checkout) ([]order.Item, []string, error) {
	if cmd.BuyNow != nil {
		if cmd.BuyNow.Quantity < 1 {
			return nil, nil, fault.Validationf("quantity must be at least 1, got %d", cmd.BuyNow.Quantity)
		}
		snapshot, err := h.ledger.Snapshot(ctx, cmd.BuyNow.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if avail := catalog.Available(snapshot); cmd.BuyNow.Quantity > avail {
			return nil, nil, &fault.OutOfStock{
				ProductID: cmd.BuyNow.ProductID,
				Requested: cmd.BuyNow.Quantity,
				Remaining: avail,
			}
		}
		return []order.Item{{
			ProductID: snapshot.ProductID,
			SellerID:  snapshot.SellerID,
			Quantity:  cmd.BuyNow.Quantity,
			UnitPrice: snapshot.Price,
		}}, nil, nil
	}

	c, err := h.cartSvc.Load(ctx, cmd.BuyerID)
	if err != nil {
		return nil, nil, err
	}

	items := make([]order.Item, 0, len(cmd.CartLineIDs))
	lineIDs := make([]string, 0, len(cmd.CartLineIDs))
	for _, lineID := range cmd.CartLineIDs {
		line := c.LineByID(lineID)
		if line == nil {
			return nil, nil, &fault.NotFound{Resource: "cart line", ID: lineID}
		}
		snapshot, err := h.ledger.Snapshot(ctx, line.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if avail := catalog.Available(snapshot); line.Quantity > avail {
			return nil, nil, &fault.OutOfStock{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Remaining: avail,
				InCart:    line.Quantity,
			}
		}
		items = append(items, order.Item{
			ProductID: line.ProductID,
			SellerID:  snapshot.SellerID,
			Quantity:  line.Quantity,
			UnitPrice: snapshot.Price,
		})
		lineIDs = append(lineIDs, lineID)
	}
	return items, lineIDs, nil
}

func (h *Handler) price(ctx context.Context, cmd Checkout, items []order.Item) (*pricing.Quote, error) {
	productAmount := 0
	sellers := make(map[string]struct{})
	for _, item := range items {
		productAmount += item.Quantity * item.UnitPrice
		sellers[item.SellerID] = struct{}{}
	}

	points := 0
	if cmd.UseLoyaltyPoints {
		balance, err := h.wallet.Balance(ctx, cmd.BuyerID)
		if err != nil {
			return nil, err
		}
		points = balance
	}

	return h.pricer.Price(pricing.Basket{
		ProductAmount:   productAmount,
		SellerCount:     len(sellers),
		AvailablePoints: points,
	}, cmd.VoucherCode, cmd.UseLoyaltyPoints)
}

// issuePaymentURL moves the order into AwaitingPayment and asks the gateway
// for a URL. The order survives a gateway failure.
func (h *Handler) issuePaymentURL(ctx context.Context, placed *order.Order) string {
	updated, err := h.orderSvc.RequestPayment(ctx, placed.ID)
	if err != nil {
		log.Printf("[Checkout] failed to move order %s into awaiting payment: %v", placed.ID, err)
		return ""
	}
	*placed = *updated
	h.cacheStatus(ctx, placed)

	url, err := h.payment.IssueURL(ctx, placed.ID, placed.TotalPrice)
	if err != nil {
		log.Printf("[Checkout] payment url issuance for order %s failed: %v", placed.ID, err)
		return ""
	}
	return url
}

// UpdateOrderStatus drives the public status surface. System transitions are
// internal and rejected here.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	if cmd.ActorRole == order.RoleSystem {
		return nil, fault.Unauthorizedf("system transitions are not available on the public surface")
	}

	updated, err := h.orderSvc.UpdateStatus(ctx, cmd.OrderID, cmd.Target, order.Actor{
		UserID: cmd.ActorID,
		Role:   cmd.ActorRole,
	})
	if err != nil {
		return nil, err
	}
	h.cacheStatus(ctx, updated)
	return updated, nil
}

// HandlePaymentCallback applies the gateway verdict exactly once. Replays are
// acknowledged without effect: Redis filters most of them and the aggregate's
// own idempotency catches the rest.
func (h *Handler) HandlePaymentCallback(ctx context.Context, cmd PaymentCallback) (*order.Order, error) {
	first, err := h.cache.MarkPaymentOnce(ctx, cmd.OrderID, cmd.Success)
	if err != nil {
		log.Printf("[Payment] callback dedup unavailable for order %s: %v", cmd.OrderID, err)
		first = true
	}
	if !first {
		return h.orderSvc.Load(ctx, cmd.OrderID)
	}

	updated, err := h.orderSvc.RecordPayment(ctx, cmd.OrderID, cmd.Success)
	if err != nil {
		return nil, err
	}
	h.cacheStatus(ctx, updated)
	return updated, nil
}

// RetryPayment reissues a payment URL for a buyer's failed online payment.
func (h *Handler) RetryPayment(ctx context.Context, cmd RetryPayment) (*CheckoutResult, error) {
	o, err := h.orderSvc.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != cmd.BuyerID {
		return nil, fault.Unauthorizedf("order %s does not belong to buyer %s", cmd.OrderID, cmd.BuyerID)
	}
	if o.Status != order.StatusPaymentFailed && o.Status != order.StatusAwaitingPayment {
		return nil, &fault.IllegalTransition{
			Entity: "order",
			From:   string(o.Status),
			To:     string(order.StatusAwaitingPayment),
			Actor:  string(order.RoleBuyer),
		}
	}

	updated, err := h.orderSvc.RequestPayment(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	h.cacheStatus(ctx, updated)

	url, err := h.payment.IssueURL(ctx, updated.ID, updated.TotalPrice)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Order: updated, PaymentURL: url}, nil
}

// CreateReturnRequest opens a return and flags the parent item. At most one
// open request may exist per order item.
func (h *Handler) CreateReturnRequest(ctx context.Context, cmd CreateReturnRequest) (*returns.ReturnRequest, error) {
	o, err := h.orderSvc.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != cmd.BuyerID {
		return nil, fault.Unauthorizedf("order %s does not belong to buyer %s", cmd.OrderID, cmd.BuyerID)
	}
	item := o.ItemByID(cmd.OrderItemID)
	if item == nil {
		return nil, &fault.NotFound{Resource: "order item", ID: cmd.OrderItemID}
	}

	if err := h.ensureNoOpenReturn(cmd.OrderItemID); err != nil {
		return nil, err
	}

	req, err := h.returnSvc.Create(ctx, returns.CreateParams{
		BuyerID:     cmd.BuyerID,
		OrderID:     cmd.OrderID,
		OrderItemID: cmd.OrderItemID,
		SellerID:    item.SellerID,
		ItemStatus:  item.Status,
		Reason:      cmd.Reason,
		Description: cmd.Description,
		ImageURL:    cmd.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	h.setItemStatus(ctx, cmd.OrderID, cmd.OrderItemID, order.StatusReturnRequested)
	return req, nil
}

func (h *Handler) ensureNoOpenReturn(orderItemID string) error {
	all, err := h.readStore.GetAll(readmodel.CollectionReturns)
	if err != nil {
		return err
	}
	for _, v := range all {
		rm, ok := v.(*readmodel.ReturnRequestReadModel)
		if !ok || rm.OrderItemID != orderItemID {
			continue
		}
		switch returns.Status(rm.Status) {
		case returns.StatusPending, returns.StatusRejected, returns.StatusEscalated:
			return fault.Conflictf("an open return request already exists for item %s", orderItemID)
		}
	}
	return nil
}

// ApproveReturn records the seller's acceptance and kicks off the refund
// credit. The decision stands even when the credit call fails; the credit is
// re-attempted out of band.
func (h *Handler) ApproveReturn(ctx context.Context, cmd ApproveReturn) (*returns.ReturnRequest, error) {
	req, err := h.returnSvc.Approve(ctx, cmd.ReturnID, cmd.SellerID)
	if err != nil {
		return nil, err
	}

	h.setItemStatus(ctx, req.OrderID, req.OrderItemID, order.StatusReturned)
	h.creditRefund(ctx, req)
	return req, nil
}

// RejectReturn records the seller's refusal. The item falls back to
// Completed; an escalation reopens it.
func (h *Handler) RejectReturn(ctx context.Context, cmd RejectReturn) (*returns.ReturnRequest, error) {
	req, err := h.returnSvc.Reject(ctx, cmd.ReturnID, cmd.SellerID, cmd.RejectReason)
	if err != nil {
		return nil, err
	}

	h.setItemStatus(ctx, req.OrderID, req.OrderItemID, order.StatusCompleted)
	return req, nil
}

// EscalateReturn hands a rejected return to staff arbitration.
func (h *Handler) EscalateReturn(ctx context.Context, cmd EscalateReturn) (*returns.ReturnRequest, error) {
	req, err := h.returnSvc.Escalate(ctx, cmd.ReturnID, cmd.BuyerID, cmd.Reason)
	if err != nil {
		return nil, err
	}

	h.setItemStatus(ctx, req.OrderID, req.OrderItemID, order.StatusReturnRequested)
	return req, nil
}

// ResolveReturn records the arbitrator's verdict. An accepted refund credits
// the buyer's wallet and marks the item Refunded.
func (h *Handler) ResolveReturn(ctx context.Context, cmd ResolveReturn) (*returns.ReturnRequest, error) {
	req, err := h.returnSvc.Resolve(ctx, cmd.ReturnID, cmd.AcceptRefund)
	if err != nil {
		return nil, err
	}

	if cmd.AcceptRefund {
		h.setItemStatus(ctx, req.OrderID, req.OrderItemID, order.StatusRefunded)
		h.creditRefund(ctx, req)
	} else {
		h.setItemStatus(ctx, req.OrderID, req.OrderItemID, order.StatusCompleted)
	}
	return req, nil
}

// creditRefund pushes the refund to the wallet ledger and, once the credit
// lands, closes the request out as Refunded.
func (h *Handler) creditRefund(ctx context.Context, req *returns.ReturnRequest) {
	amount, err := h.refundAmount(ctx, req)
	if err != nil {
		log.Printf("[Return] cannot determine refund amount for return %s: %v", req.ID, err)
		return
	}

	if err := h.wallet.Credit(ctx, req.UserID, amount, req.ID); err != nil {
		log.Printf("[Return] wallet credit for return %s failed, will be retried: %v", req.ID, err)
		return
	}

	if _, err := h.returnSvc.MarkRefunded(ctx, req.ID); err != nil {
		log.Printf("[Return] failed to mark return %s refunded: %v", req.ID, err)
		return
	}
	h.setItemStatus(ctx, req.OrderID, req.OrderItemID, order.StatusRefunded)
}

func (h *Handler) refundAmount(ctx context.Context, req *returns.ReturnRequest) (int, error) {
	o, err := h.orderSvc.Load(ctx, req.OrderID)
	if err != nil {
		return 0, err
	}
	item := o.ItemByID(req.OrderItemID)
	if item == nil {
		return 0, &fault.NotFound{Resource: "order item", ID: req.OrderItemID}
	}
	return item.Quantity * item.UnitPrice, nil
}

func (h *Handler) setItemStatus(ctx context.Context, orderID, orderItemID string, target order.Status) {
	if _, err := h.orderSvc.SetItemStatus(ctx, orderID, orderItemID, target); err != nil {
		log.Printf("[Order] failed to set item %s on order %s to %s: %v", orderItemID, orderID, target, err)
	}
}

func (h *Handler) cacheStatus(ctx context.Context, o *order.Order) {
	if err := h.cache.SetOrderStatus(ctx, o.ID, string(o.Status)); err != nil {
		log.Printf("[Order] failed to cache status for order %s: %v", o.ID, err)
	}
}
