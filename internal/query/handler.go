package query

import (
	"log"
	"sort"

	"github.com/example/marketplace-engine/internal/domain/cart"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/readmodel"
)

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

// SellerGroupView is a cart sliced per seller for the checkout page.
type SellerGroupView struct {
	SellerID string                        `json:"seller_id"`
	Lines    []readmodel.CartLineReadModel `json:"lines"`
	Subtotal int                           `json:"subtotal"`
}

// CartView is the seller-grouped cart read model.
type CartView struct {
	ID     string            `json:"id"`
	UserID string            `json:"user_id"`
	Groups []SellerGroupView `json:"groups"`
	Total  int               `json:"total"`
}

// GetCart returns the customer's cart grouped by seller. A customer with no
// cart yet sees an empty one.
func (h *Handler) GetCart(userID string) *CartView {
	cartID := cart.GetCartID(userID)
	view := &CartView{ID: cartID, UserID: userID, Groups: []SellerGroupView{}}

	data, ok, err := h.readStore.Get(readmodel.CollectionCarts, cartID)
	if err != nil {
		log.Printf("[Query] Error getting cart %s: %v", cartID, err)
		return view
	}
	if !ok {
		return view
	}

	model := data.(*readmodel.CartReadModel)
	view.Total = model.Total

	bySeller := make(map[string][]readmodel.CartLineReadModel)
	for _, line := range model.Lines {
		key := line.SellerID
		if key == "" {
			key = cart.UnknownSeller
		}
		bySeller[key] = append(bySeller[key], line)
	}

	keys := make([]string, 0, len(bySeller))
	for k := range bySeller {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		subtotal := 0
		for _, line := range bySeller[k] {
			subtotal += line.Quantity * line.UnitPrice
		}
		view.Groups = append(view.Groups, SellerGroupView{SellerID: k, Lines: bySeller[k], Subtotal: subtotal})
	}
	return view
}

// Orders

func (h *Handler) GetOrder(id string) (*readmodel.OrderReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionOrders, id)
	if err != nil {
		log.Printf("[Query] Error getting order %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.OrderReadModel), true
}

// ListOrdersByUser returns the buyer's orders, newest first.
func (h *Handler) ListOrdersByUser(userID string) []*readmodel.OrderReadModel {
	return h.filterOrders(func(o *readmodel.OrderReadModel) bool {
		return o.BuyerID == userID
	})
}

// ListOrdersBySeller returns orders containing at least one of the seller's
// items, newest first.
func (h *Handler) ListOrdersBySeller(sellerID string) []*readmodel.OrderReadModel {
	return h.filterOrders(func(o *readmodel.OrderReadModel) bool {
		for _, item := range o.Items {
			if item.SellerID == sellerID {
				return true
			}
		}
		return false
	})
}

// ListAllOrders returns all orders (for admin use)
func (h *Handler) ListAllOrders() []*readmodel.OrderReadModel {
	return h.filterOrders(func(*readmodel.OrderReadModel) bool { return true })
}

func (h *Handler) filterOrders(keep func(*readmodel.OrderReadModel) bool) []*readmodel.OrderReadModel {
	items, err := h.readStore.GetAll(readmodel.CollectionOrders)
	if err != nil {
		log.Printf("[Query] Error listing orders: %v", err)
		return nil
	}
	orders := make([]*readmodel.OrderReadModel, 0)
	for _, item := range items {
		o := item.(*readmodel.OrderReadModel)
		if keep(o) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

// Return requests

func (h *Handler) GetReturnRequest(id string) (*readmodel.ReturnRequestReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionReturns, id)
	if err != nil {
		log.Printf("[Query] Error getting return request %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.ReturnRequestReadModel), true
}

func (h *Handler) ListReturnRequestsByUser(userID string) []*readmodel.ReturnRequestReadModel {
	return h.filterReturns(func(r *readmodel.ReturnRequestReadModel) bool {
		return r.UserID == userID
	})
}

func (h *Handler) ListReturnRequestsBySeller(sellerID string) []*readmodel.ReturnRequestReadModel {
	return h.filterReturns(func(r *readmodel.ReturnRequestReadModel) bool {
		return r.SellerID == sellerID
	})
}

// ListEscalated is the staff arbitration queue, oldest first.
func (h *Handler) ListEscalated() []*readmodel.ReturnRequestReadModel {
	escalated := h.filterReturns(func(r *readmodel.ReturnRequestReadModel) bool {
		return r.Status == string(returns.StatusEscalated)
	})
	sort.Slice(escalated, func(i, j int) bool {
		return escalated[i].RequestedAt.Before(escalated[j].RequestedAt)
	})
	return escalated
}

func (h *Handler) filterReturns(keep func(*readmodel.ReturnRequestReadModel) bool) []*readmodel.ReturnRequestReadModel {
	items, err := h.readStore.GetAll(readmodel.CollectionReturns)
	if err != nil {
		log.Printf("[Query] Error listing return requests: %v", err)
		return nil
	}
	requests := make([]*readmodel.ReturnRequestReadModel, 0)
	for _, item := range items {
		r := item.(*readmodel.ReturnRequestReadModel)
		if keep(r) {
			requests = append(requests, r)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
	return requests
}

// Users

func (h *Handler) GetUser(id string) (*readmodel.UserReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionUsers, id)
	if err != nil {
		log.Printf("[Query] Error getting user %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.UserReadModel), true
}

// GetUserByEmail scans the users collection; email is unique by registration
// policy, first match wins.
func (h *Handler) GetUserByEmail(email string) (*readmodel.UserReadModel, bool) {
	items, err := h.readStore.GetAll(readmodel.CollectionUsers)
	if err != nil {
		log.Printf("[Query] Error listing users: %v", err)
		return nil, false
	}
	for _, item := range items {
		u := item.(*readmodel.UserReadModel)
		if u.Email == email {
			return u, true
		}
	}
	return nil, false
}
