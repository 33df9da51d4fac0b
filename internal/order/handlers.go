package order

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/internal/events"
)

// RegisterHandlers binds the coordinator to orders.queue and payments.queue.
func RegisterHandlers(r *events.Router, c *Coordinator) {
	r.Handle(events.OrdersQueue, events.TypeOrderFailed, c.HandleOrderFailed)
	r.Handle(events.PaymentsQueue, events.TypePaymentSuccess, c.HandlePaymentSuccess)
	r.Handle(events.PaymentsQueue, events.TypePaymentFailed, c.HandlePaymentFailed)
}

func (c *Coordinator) HandleOrderFailed(ctx context.Context, env events.Envelope) error {
	msg, err := events.Decode[events.OrderFailed](env)
	if err != nil {
		return err
	}
	return c.OnOrderFailed(ctx, msg.OrderID, msg.Reason)
}

func (c *Coordinator) HandlePaymentSuccess(ctx context.Context, env events.Envelope) error {
	msg, err := events.Decode[events.PaymentSucceeded](env)
	if err != nil {
		return err
	}
	return c.OnPaymentSucceeded(ctx, msg)
}

func (c *Coordinator) HandlePaymentFailed(ctx context.Context, env events.Envelope) error {
	msg, err := events.Decode[events.PaymentFailed](env)
	if err != nil {
		return err
	}
	return c.OnPaymentFailed(ctx, msg)
}
