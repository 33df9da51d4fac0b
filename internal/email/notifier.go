// Package email sends order confirmations at most once per order.
package email

import (
	"context"
	"errors"
	"log/slog"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

const (
	DefaultFrom = `"MicroCommerce" <no-reply@microcommerce.com>`
	DedupPrefix = "email:sent:"
)

// Claimer records that a side effect for a key has been taken.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Notifier struct {
	sent   Claimer
	sender Sender
	from   string
	logger *slog.Logger
}

func NewNotifier(sent Claimer, sender Sender, from string, logger *slog.Logger) *Notifier {
	if from == "" {
		from = DefaultFrom
	}
	return &Notifier{sent: sent, sender: sender, from: from, logger: logger}
}

func RegisterHandlers(r *events.Router, n *Notifier) {
	r.Handle(events.EmailQueue, events.TypeOrderConfirmation, n.HandleConfirmation)
}

func (n *Notifier) HandleConfirmation(ctx context.Context, env events.Envelope) error {
	msg, err := events.Decode[events.OrderConfirmation](env)
	if err != nil {
		return err
	}
	return n.SendConfirmation(ctx, msg)
}

// SendConfirmation mails the confirmation unless one was already sent for the
// order. A failed send releases the claim so a redelivery can try again. A send
// cut short by ctx may still reach the server, so its claim is kept.
func (n *Notifier) SendConfirmation(ctx context.Context, msg events.OrderConfirmation) error {
	orderID := msg.OrderDetails.OrderID
	log := logging.FromCtx(ctx, n.logger).With("orderId", orderID, "to", msg.To)

	body, err := renderConfirmation(msg.OrderDetails)
	if err != nil {
		return apperr.Processing("Failed to render confirmation email", err)
	}

	first, err := n.sent.Claim(ctx, orderID)
	if err != nil {
		return apperr.Database("Failed to claim confirmation email", err)
	}
	if !first {
		log.Info("confirmation already sent, skipping")
		return nil
	}

	err = n.sender.Send(ctx, Message{
		From:    n.from,
		To:      msg.To,
		Subject: "Order Confirmation - Order #" + orderID,
		Body:    body,
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("email send abandoned, delivery unknown; keeping claim", "error", err)
		return apperr.Processing("Confirmation email send timed out", err)
	}
	if err != nil {
		if rerr := n.sent.Release(context.WithoutCancel(ctx), orderID); rerr != nil {
			log.Error("release email claim", "error", rerr)
		}
		log.Error("failed to send email", "error", err)
		return apperr.Processing("Failed to send confirmation email", err)
	}
	log.Info("email sent")
	return nil
}
