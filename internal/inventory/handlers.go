package inventory

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

// RegisterHandlers binds the ledger to inventory.queue. Other message types on
// the queue are rejected by the router as processing errors.
func RegisterHandlers(r *events.Router, l *Ledger) {
	r.Handle(events.InventoryQueue, events.TypeReserveStock, l.HandleReserve)
	r.Handle(events.InventoryQueue, events.TypeRollbackStock, l.HandleRollback)
}

// HandleReserve applies RESERVE_STOCK. When the reservation is refused for good,
// ORDER_FAILED is sent back to the order service before the message fails.
func (l *Ledger) HandleReserve(ctx context.Context, env events.Envelope) error {
	msg, err := events.Decode[events.ReserveStock](env)
	if err == nil {
		err = l.Reserve(ctx, env.EventID, msg)
	}
	if err == nil || apperr.Retryable(err) || msg.OrderID == "" {
		return err
	}

	perr := events.Publish(ctx, l.pub, events.OrdersQueue, events.TypeOrderFailed, msg.OrderID, events.OrderFailed{
		OrderID: msg.OrderID,
		Reason:  err.Error(),
	})
	if perr != nil {
		logging.FromCtx(ctx, l.logger).Error("publish order failed", "orderId", msg.OrderID, "error", perr)
	}
	return err
}

func (l *Ledger) HandleRollback(ctx context.Context, env events.Envelope) error {
	msg, err := events.Decode[events.RollbackStock](env)
	if err != nil {
		return err
	}
	return l.Rollback(ctx, env.EventID, msg)
}
