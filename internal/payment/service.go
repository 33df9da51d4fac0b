// Package payment simulates a card processor. The HTTP caller gets the outcome
// immediately; the order service learns it from the published message.
package payment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"

	declinedCardholder = "broke user"
	ReasonNoFunds      = "Insufficient funds"
)

type CardDetails struct {
	Name       string `json:"name" validate:"required"`
	CardNumber string `json:"cardNumber" validate:"required,credit_card"`
	ExpiryDate string `json:"expiryDate" validate:"required,expiry"`
	CVV        string `json:"cvv" validate:"required,cvv"`
}

type Request struct {
	OrderID     string      `json:"orderId" validate:"required,uuid"`
	Amount      float64     `json:"amount" validate:"gt=0,cents"`
	Currency    string      `json:"currency" validate:"required"`
	CardDetails CardDetails `json:"cardDetails" validate:"required"`
}

type Result struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	OrderID   string `json:"orderId"`
}

type Simulator struct {
	pub    events.Publisher
	logger *slog.Logger
	newID  func() string
}

func NewSimulator(pub events.Publisher, logger *slog.Logger) *Simulator {
	return &Simulator{pub: pub, logger: logger, newID: newPaymentID}
}

func newPaymentID() string {
	return "payment_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ProcessPayment decides the payment and announces the outcome on payments.queue.
func (s *Simulator) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	name := strings.TrimSpace(req.CardDetails.Name)
	if name == "" {
		return Result{}, apperr.Payment("Cardholder name is required", "", nil)
	}
	log := logging.FromCtx(ctx, s.logger).With("orderId", req.OrderID)

	if strings.EqualFold(name, declinedCardholder) {
		err := events.Publish(ctx, s.pub, events.PaymentsQueue, events.TypePaymentFailed, req.OrderID, events.PaymentFailed{
			OrderID:  req.OrderID,
			Reason:   ReasonNoFunds,
			Amount:   req.Amount,
			Currency: req.Currency,
		})
		if err != nil {
			return Result{}, apperr.Payment("Payment processing failed", "", err)
		}
		log.Info("payment rejected", "reason", ReasonNoFunds)
		return Result{Status: StatusRejected, Reason: ReasonNoFunds, OrderID: req.OrderID}, nil
	}

	paymentID := s.newID()
	err := events.Publish(ctx, s.pub, events.PaymentsQueue, events.TypePaymentSuccess, req.OrderID, events.PaymentSucceeded{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		return Result{}, apperr.Payment("Payment processing failed", "", err)
	}
	log.Info("payment accepted", "paymentId", paymentID, "amount", req.Amount, "currency", req.Currency)
	return Result{Status: StatusSuccess, PaymentID: paymentID, OrderID: req.OrderID}, nil
}
