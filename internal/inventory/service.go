package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

// Ledger applies reserve and rollback messages to the inventory and answers
// stock queries.
type Ledger struct {
	repo     Repository
	pub      events.Publisher
	consumer string
	logger   *slog.Logger
}

func NewLedger(repo Repository, pub events.Publisher, consumer string, logger *slog.Logger) *Ledger {
	return &Ledger{repo: repo, pub: pub, consumer: consumer, logger: logger}
}

func (l *Ledger) GetInventoryByProductID(ctx context.Context, productID int64) (Record, error) {
	rec, err := l.repo.Get(ctx, productID)
	if err != nil {
		return Record{}, l.mapErr(err, productID, "Failed to load inventory")
	}
	return rec, nil
}

// SetAvailable overwrites the available quantity of a product, creating it if needed.
func (l *Ledger) SetAvailable(ctx context.Context, productID int64, available int) error {
	if productID <= 0 {
		return apperr.Validation("productId must be positive")
	}
	if available < 0 {
		return apperr.Validation("available must not be negative")
	}
	if err := l.repo.SetAvailable(ctx, productID, available); err != nil {
		return apperr.Database("Failed to update inventory", err)
	}
	logging.FromCtx(ctx, l.logger).Info("inventory adjusted", "productId", productID, "available", available)
	return nil
}

// Reserve takes quantity out of the ledger for an order line.
func (l *Ledger) Reserve(ctx context.Context, eventID string, msg events.ReserveStock) error {
	res, err := l.repo.Reserve(ctx, Change{
		Consumer:  l.consumer,
		EventID:   eventID,
		OrderID:   msg.OrderID,
		ProductID: msg.ProductID,
		Quantity:  msg.Quantity,
	})
	if err != nil {
		metrics.StockOperations.WithLabelValues("reserve", "error").Inc()
		return l.mapErr(err, msg.ProductID, "Failed to reserve stock")
	}

	metrics.StockOperations.WithLabelValues("reserve", res.Outcome.String()).Inc()
	logging.FromCtx(ctx, l.logger).Info("reserve stock",
		"orderId", msg.OrderID,
		"productId", msg.ProductID,
		"quantity", msg.Quantity,
		"outcome", res.Outcome.String(),
		"available", res.Available,
	)
	return nil
}

// Rollback returns stock for an order line, or a bare quantity when no order is given.
func (l *Ledger) Rollback(ctx context.Context, eventID string, msg events.RollbackStock) error {
	res, err := l.repo.Rollback(ctx, Change{
		Consumer:  l.consumer,
		EventID:   eventID,
		OrderID:   msg.OrderID,
		ProductID: msg.ProductID,
		Quantity:  msg.Quantity,
	})
	if err != nil {
		metrics.StockOperations.WithLabelValues("rollback", "error").Inc()
		return l.mapErr(err, msg.ProductID, "Failed to roll back stock")
	}

	metrics.StockOperations.WithLabelValues("rollback", res.Outcome.String()).Inc()
	logging.FromCtx(ctx, l.logger).Info("rollback stock",
		"orderId", msg.OrderID,
		"productId", msg.ProductID,
		"returned", res.Returned,
		"outcome", res.Outcome.String(),
	)
	return nil
}

func (l *Ledger) mapErr(err error, productID int64, msg string) error {
	var short *InsufficientStockError
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Inventory", strconv.FormatInt(productID, 10))
	case errors.As(err, &short):
		return apperr.Quantity(short.ProductID, short.Available, short.Requested)
	default:
		return apperr.Database(msg, err)
	}
}
