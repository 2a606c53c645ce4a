// Package handler exposes the ordering service over HTTP.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/foodorder/internal/domain/auth"
	"github.com/xenking/foodorder/internal/domain/cart"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/order"
)

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in menu and order
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Deps are the collaborators of the Handler.
type Deps struct {
	Menu    menu.Repository
	Cart    *cart.Service
	Orders  *order.Service
	Queries *order.QueryService
	Tokens  TokenVerifier
	APIKeys *APIKeyAuth
}

// Handler serves the REST API, delegating business logic to the domain
// services.
type Handler struct {
	menu         menu.Repository
	cart         *cart.Service
	orders       *order.Service
	queries      *order.QueryService
	tokens       TokenVerifier
	apikeys      *APIKeyAuth
	validate     *validator.Validate
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	return &Handler{
		menu:         deps.Menu,
		cart:         deps.Cart,
		orders:       deps.Orders,
		queries:      deps.Queries,
		tokens:       deps.Tokens,
		apikeys:      deps.APIKeys,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes returns the router for everything under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.listMenu)
		r.Get("/menu/{id}", h.getMenuItem)
		r.Post("/cart/items", h.addCartItem)
		r.Put("/cart/items/{menuItemId}", h.updateCartItem)
		r.Delete("/cart/items/{menuItemId}", h.removeCartItem)
		r.Post("/cart/totals", h.cartTotals)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/orders", h.createOrder)
			r.Get("/orders", h.listMyOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}/cancel", h.cancelOrder)
			r.Post("/payments/cash", h.confirmCash)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.apikeys.Require(auth.ScopePaymentsWebhook))
			r.Post("/payments/webhook", h.paymentWebhook)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireUser, requireAdmin)
			r.Get("/orders", h.listAllOrders)
			r.Get("/orders/stats", h.orderStats)
			r.Patch("/orders/{id}/status", h.updateStatus)
			r.Patch("/orders/{id}/payment-status", h.updatePaymentStatus)
			r.Post("/orders/{id}/refund", h.refundOrder)
			r.Get("/menu", h.listAdminMenu)
			r.Post("/menu", h.createMenuItem)
			r.Put("/menu/{id}", h.updateMenuItem)
			r.Patch("/menu/{id}/toggle-availability", h.toggleAvailability)
		})
	})

	return r
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.imageBaseURL + path
}
