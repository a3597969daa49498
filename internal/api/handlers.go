package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/marketplace-engine/internal/api/middleware"
	"github.com/example/marketplace-engine/internal/auth"
	"github.com/example/marketplace-engine/internal/command"
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/domain/user"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/query"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

// actorRole maps the account role from the JWT claim onto the capacity the
// actor drives the order state machine in. Unknown roles act as buyers.
func actorRole(accountRole string) order.Role {
	switch user.Role(accountRole) {
	case user.RoleArtisan:
		return order.RoleSeller
	case user.RoleStaff:
		return order.RoleStaff
	case user.RoleAdmin:
		return order.RoleAdmin
	default:
		return order.RoleBuyer
	}
}

func claimsFrom(r *http.Request) (*auth.Claims, bool) {
	return middleware.GetUserFromContext(r.Context())
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	respondJSON(w, http.StatusOK, h.queryHandler.GetCart(userID))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.UserID = middleware.GetUserID(r.Context())

	c, err := h.cmdHandler.AddToCart(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) UpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateCartQuantity
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.UserID = middleware.GetUserID(r.Context())
	cmd.LineID = chi.URLParam(r, "lineID")

	c, err := h.cmdHandler.UpdateCartQuantity(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveFromCart{
		UserID: middleware.GetUserID(r.Context()),
		LineID: chi.URLParam(r, "lineID"),
	}

	c, err := h.cmdHandler.RemoveFromCart(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Order Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var cmd command.Checkout
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.BuyerID = middleware.GetUserID(r.Context())

	result, err := h.cmdHandler.Checkout(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	respondJSON(w, http.StatusOK, h.queryHandler.ListOrdersByUser(userID))
}

func (h *Handlers) GetSellerOrders(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	respondJSON(w, http.StatusOK, h.queryHandler.ListOrdersBySeller(sellerID))
}

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queryHandler.ListAllOrders())
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, fault.Unauthorizedf("no session"))
		return
	}

	id := chi.URLParam(r, "orderID")
	o, found := h.queryHandler.GetOrder(id)
	if !found {
		writeError(w, &fault.NotFound{Resource: "order", ID: id})
		return
	}

	// Visible to the buyer, a seller with an item on the order, and staff
	visible := false
	switch actorRole(claims.Role) {
	case order.RoleStaff, order.RoleAdmin:
		visible = true
	case order.RoleSeller:
		for _, item := range o.Items {
			if item.SellerID == claims.UserID {
				visible = true
				break
			}
		}
	default:
		visible = o.BuyerID == claims.UserID
	}
	if !visible {
		writeError(w, fault.Unauthorizedf("order is not visible to user %s", claims.UserID))
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, fault.Unauthorizedf("no session"))
		return
	}

	var cmd command.UpdateOrderStatus
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.OrderID = chi.URLParam(r, "orderID")
	cmd.ActorID = claims.UserID
	cmd.ActorRole = actorRole(claims.Role)

	updated, err := h.cmdHandler.UpdateOrderStatus(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Payment Handlers

// PaymentCallback is called by the payment gateway, not by a user session.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var cmd command.PaymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	if cmd.OrderID == "" {
		writeError(w, fault.Validationf("order_id is required"))
		return
	}

	updated, err := h.cmdHandler.HandlePaymentCallback(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"order_id": updated.ID,
		"status":   string(updated.Status),
	})
}

func (h *Handlers) RetryPayment(w http.ResponseWriter, r *http.Request) {
	cmd := command.RetryPayment{
		OrderID: chi.URLParam(r, "orderID"),
		BuyerID: middleware.GetUserID(r.Context()),
	}

	result, err := h.cmdHandler.RetryPayment(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Return Request Handlers

func (h *Handlers) CreateReturnRequest(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.BuyerID = middleware.GetUserID(r.Context())

	req, err := h.cmdHandler.CreateReturnRequest(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) GetReturnRequests(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	respondJSON(w, http.StatusOK, h.queryHandler.ListReturnRequestsByUser(userID))
}

func (h *Handlers) GetSellerReturnRequests(w http.ResponseWriter, r *http.Request) {
	sellerID := middleware.GetUserID(r.Context())
	respondJSON(w, http.StatusOK, h.queryHandler.ListReturnRequestsBySeller(sellerID))
}

func (h *Handlers) GetEscalatedReturnRequests(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queryHandler.ListEscalated())
}

func (h *Handlers) GetReturnRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, fault.Unauthorizedf("no session"))
		return
	}

	id := chi.URLParam(r, "returnID")
	req, found := h.queryHandler.GetReturnRequest(id)
	if !found {
		writeError(w, &fault.NotFound{Resource: "return request", ID: id})
		return
	}

	role := actorRole(claims.Role)
	if role != order.RoleStaff && role != order.RoleAdmin &&
		claims.UserID != req.UserID && claims.UserID != req.SellerID {
		writeError(w, fault.Unauthorizedf("return request is not visible to user %s", claims.UserID))
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// UpdateReturnStatus handles the seller verdict: approved or rejected.
func (h *Handlers) UpdateReturnStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status       string `json:"status"`
		RejectReason string `json:"reject_reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}

	returnID := chi.URLParam(r, "returnID")
	sellerID := middleware.GetUserID(r.Context())

	switch body.Status {
	case "approved":
		req, err := h.cmdHandler.ApproveReturn(r.Context(), command.ApproveReturn{
			ReturnID: returnID,
			SellerID: sellerID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, req)
	case "rejected":
		req, err := h.cmdHandler.RejectReturn(r.Context(), command.RejectReturn{
			ReturnID:     returnID,
			SellerID:     sellerID,
			RejectReason: returns.RejectReason(body.RejectReason),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, req)
	default:
		writeError(w, fault.Validationf("status must be approved or rejected, got %q", body.Status))
	}
}

func (h *Handlers) EscalateReturn(w http.ResponseWriter, r *http.Request) {
	var cmd command.EscalateReturn
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.ReturnID = chi.URLParam(r, "returnID")
	cmd.BuyerID = middleware.GetUserID(r.Context())

	req, err := h.cmdHandler.EscalateReturn(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) ResolveReturn(w http.ResponseWriter, r *http.Request) {
	var cmd command.ResolveReturn
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, fault.Validationf("invalid request body"))
		return
	}
	cmd.ReturnID = chi.URLParam(r, "returnID")

	req, err := h.cmdHandler.ResolveReturn(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}
