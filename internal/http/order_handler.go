package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/order"
)

type OrderHandler struct {
	svc OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type createOrderRequest struct {
	Items []order.Line `json:"items" validate:"required,min=1,dive"`
}

type orderResponse struct {
	Success bool         `json:"success"`
	Order   *order.Order `json:"order"`
}

type orderListResponse struct {
	Success bool          `json:"success"`
	Orders  []order.Order `json:"orders"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized(""))
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.svc.CreateOrder(ctx, user, req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{Success: true, Order: o})
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized(""))
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if _, err := uuid.Parse(orderID); err != nil {
		writeError(w, r, apperr.Validation("Invalid order id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.GetOrderByID(ctx, orderID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Success: true, Order: o})
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized(""))
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, page, limit, err := h.svc.GetOrderHistory(ctx, user.Username, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orderListResponse{Success: true, Orders: orders, Page: page, Limit: limit})
}

// queryInt returns 0 for an absent parameter so the service applies its default.
func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Validation("Invalid query parameter " + name)
	}
	return n, nil
}
