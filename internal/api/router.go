package api

import (
	"net/http"
	"time"

	"github.com/example/marketplace-engine/internal/api/middleware"
	"github.com/example/marketplace-engine/internal/auth"
	"github.com/example/marketplace-engine/internal/domain/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires the route tree
type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger)
	r.Use(chimw.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Public surface
	r.Post("/auth/register", cfg.AuthHandlers.Register)
	r.Post("/auth/login", cfg.AuthHandlers.Login)
	r.Post("/auth/refresh", cfg.AuthHandlers.Refresh)

	// Called by the payment gateway, authenticated out of band
	r.Post("/payments/callback", cfg.Handlers.PaymentCallback)

	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	staffOnly := middleware.RequireRole(string(user.RoleStaff), string(user.RoleAdmin))
	adminOnly := middleware.RequireRole(string(user.RoleAdmin))
	sellerOnly := middleware.RequireRole(string(user.RoleArtisan), string(user.RoleAdmin))

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/auth/logout", cfg.AuthHandlers.Logout)
		r.Get("/auth/me", cfg.AuthHandlers.Me)
		r.Put("/auth/password", cfg.AuthHandlers.ChangePassword)

		// Cart
		r.Get("/cart", cfg.Handlers.GetCart)
		r.Post("/cart/items", cfg.Handlers.AddToCart)
		r.Put("/cart/items/{lineID}", cfg.Handlers.UpdateCartQuantity)
		r.Delete("/cart/items/{lineID}", cfg.Handlers.RemoveFromCart)

		// Orders
		r.Post("/orders", cfg.Handlers.Checkout)
		r.Get("/orders", cfg.Handlers.GetOrders)
		r.Get("/orders/{orderID}", cfg.Handlers.GetOrder)
		r.Put("/orders/{orderID}/status", cfg.Handlers.UpdateOrderStatus)
		r.Post("/orders/{orderID}/retry-payment", cfg.Handlers.RetryPayment)

		r.With(sellerOnly).Get("/seller/orders", cfg.Handlers.GetSellerOrders)
		r.With(adminOnly).Get("/admin/orders", cfg.Handlers.GetAllOrders)

		// Return requests
		r.Post("/returns", cfg.Handlers.CreateReturnRequest)
		r.Get("/returns", cfg.Handlers.GetReturnRequests)
		r.Get("/returns/{returnID}", cfg.Handlers.GetReturnRequest)
		r.Put("/returns/{returnID}/status", cfg.Handlers.UpdateReturnStatus)
		r.Put("/returns/{returnID}/escalate", cfg.Handlers.EscalateReturn)

		r.With(sellerOnly).Get("/seller/returns", cfg.Handlers.GetSellerReturnRequests)
		r.With(staffOnly).Get("/staff/returns/escalated", cfg.Handlers.GetEscalatedReturnRequests)
		r.With(staffOnly).Put("/returns/{returnID}/resolve", cfg.Handlers.ResolveReturn)
	})

	return r
}
