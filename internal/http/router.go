// Package http exposes the services over HTTP with chi.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/internal/order"
	"github.com/andreasstove999/ecommerce-system/internal/payment"
)

type OrderService interface {
	CreateOrder(ctx context.Context, user auth.User, lines []order.Line) (*order.Order, error)
	GetOrderByID(ctx context.Context, orderID, owner string) (*order.Order, error)
	GetOrderHistory(ctx context.Context, owner string, page, limit int) ([]order.Order, int, int, error)
}

type InventoryService interface {
	GetInventoryByProductID(ctx context.Context, productID int64) (inventory.Record, error)
	SetAvailable(ctx context.Context, productID int64, available int) error
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, req payment.Request) (payment.Result, error)
}

// NewBaseRouter carries the middleware stack plus /health and /metrics shared
// by every service.
func NewBaseRouter(logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(CorrelationID(logger))
	r.Use(AccessLog)
	r.Use(Recover)
	r.Use(metrics.Middleware)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func NewOrderRouter(svc OrderService, v *auth.Verifier, logger *slog.Logger) http.Handler {
	r := NewBaseRouter(logger)
	h := NewOrderHandler(svc)
	r.Route("/orders", func(r chi.Router) {
		r.Use(RequireAuth(v))
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{orderId}", h.GetOrder)
	})
	return r
}

func NewInventoryRouter(svc InventoryService, v *auth.Verifier, logger *slog.Logger) http.Handler {
	r := NewBaseRouter(logger)
	h := NewInventoryHandler(svc)
	r.Get("/inventory/{productId}", h.GetInventory)
	r.With(RequireAuth(v)).Post("/inventory/adjust", h.Adjust)
	return r
}

func NewPaymentRouter(svc PaymentService, v *auth.Verifier, logger *slog.Logger) http.Handler {
	r := NewBaseRouter(logger)
	h := NewPaymentHandler(svc)
	r.With(RequireAuth(v)).Post("/payments", h.ProcessPayment)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
