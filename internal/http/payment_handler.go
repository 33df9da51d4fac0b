package http

import (
	"context"
	"net/http"
	"time"

	"github.com/andreasstove999/ecommerce-system/internal/payment"
)

type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// ProcessPayment answers 200 for both accepted and rejected payments; the
// status field tells them apart.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req payment.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.svc.ProcessPayment(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
