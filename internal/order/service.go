package order

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/cache"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

const (
	Currency = "EUR"

	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	TimeoutReason = "Order timed out waiting for saga completion"
)

// ProductLookup returns the cached snapshot of a product; ok is false on a miss.
type ProductLookup interface {
	Get(ctx context.Context, productID int64) (snap cache.Snapshot, ok bool, err error)
}

// Coordinator owns the order aggregate and drives it through the saga.
type Coordinator struct {
	repo     Repository
	products ProductLookup
	pub      events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewCoordinator(repo Repository, products ProductLookup, pub events.Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		repo:     repo,
		products: products,
		pub:      pub,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *Coordinator) log(ctx context.Context) *slog.Logger {
	return logging.FromCtx(ctx, c.logger)
}

// CreateOrder prices lines from the product cache, requests a stock reservation
// per line and persists the pending order. Any cache miss fails the call before
// anything is published or stored.
func (c *Coordinator) CreateOrder(ctx context.Context, user auth.User, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("Order must contain at least one item")
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.Validation(fmt.Sprintf("Quantity for product %d must be positive", l.ProductID))
		}
		snap, ok, err := c.products.Get(ctx, l.ProductID)
		if err != nil {
			return nil, apperr.Processing("Failed to read product cache", err)
		}
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("Product %d not found in cache", l.ProductID))
		}
		items = append(items, Item{ProductID: l.ProductID, Name: snap.Name, Price: snap.Price, Quantity: l.Quantity})
	}

	now := c.now()
	o := &Order{
		ID:         uuid.NewString(),
		Username:   user.Username,
		Email:      user.Email,
		Items:      items,
		TotalPrice: Total(items),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	log := c.log(ctx).With("orderId", o.ID)

	// Reservations go out before the save; a lost one leaves the order
	// pending until the reaper fails it.
	for _, it := range o.Items {
		err := events.Publish(ctx, c.pub, events.InventoryQueue, events.TypeReserveStock, o.ID, events.ReserveStock{
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
		if err != nil {
			log.Error("publish reserve stock failed", "productId", it.ProductID, "error", err)
		}
	}

	if err := c.repo.Create(ctx, o); err != nil {
		if cerr := c.compensate(ctx, o); cerr != nil {
			log.Error("rollback after failed save", "error", cerr)
		}
		return nil, apperr.Database("Failed to create order", err)
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusPending)).Inc()
	log.Info("order created", "items", len(o.Items), "totalPrice", o.TotalPrice)
	return o, nil
}

// GetOrderByID returns the order only to its owner.
func (c *Coordinator) GetOrderByID(ctx context.Context, orderID, owner string) (*Order, error) {
	o, err := c.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Database("Failed to load order", err)
	}
	if o == nil || o.Username != owner {
		return nil, apperr.NotFound("Order", orderID)
	}
	return o, nil
}

// GetOrderHistory returns one page of the owner's orders, newest first, with
// the page and limit actually applied.
func (c *Coordinator) GetOrderHistory(ctx context.Context, owner string, page, limit int) ([]Order, int, int, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	orders, err := c.repo.ListByUser(ctx, owner, limit, (page-1)*limit)
	if err != nil {
		return nil, page, limit, apperr.Database("Failed to load order history", err)
	}
	return orders, page, limit, nil
}

// OnOrderFailed fails the order after a stock reservation was refused.
func (c *Coordinator) OnOrderFailed(ctx context.Context, orderID, reason string) error {
	o, err := c.load(ctx, orderID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "Stock reservation failed"
	}
	return c.fail(ctx, o, reason)
}

// OnPaymentSucceeded marks the order paid when amount and currency match, and
// fails it as an insufficient payment otherwise.
func (c *Coordinator) OnPaymentSucceeded(ctx context.Context, msg events.PaymentSucceeded) error {
	o, err := c.load(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	return c.paymentSucceeded(ctx, o, msg)
}

func (c *Coordinator) paymentSucceeded(ctx context.Context, o *Order, msg events.PaymentSucceeded) error {
	log := c.log(ctx).With("orderId", o.ID)

	switch o.Status {
	case StatusPaid:
		// redelivery; the notifier drops duplicates
		log.Info("order already paid, resending confirmation")
		return c.confirm(ctx, o)
	case StatusPending:
	default:
		log.Warn("payment success for closed order ignored", "status", o.Status, "amount", msg.Amount, "currency", msg.Currency)
		return nil
	}

	if !sameAmount(msg.Amount, o.TotalPrice) || msg.Currency != Currency {
		reason := fmt.Sprintf("Insufficient payment. Paid: %s %s, Expected: %s %s",
			formatAmount(msg.Amount), msg.Currency, formatAmount(o.TotalPrice), Currency)
		return c.fail(ctx, o, reason)
	}

	ok, err := c.repo.Transition(ctx, o.ID, StatusPaid, "")
	if err != nil {
		return apperr.Database("Failed to mark order paid", err)
	}
	if !ok {
		return c.reconcile(ctx, o.ID, func(cur *Order) error { return c.paymentSucceeded(ctx, cur, msg) })
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusPaid)).Inc()
	log.Info("order paid", "amount", msg.Amount)
	o.Status = StatusPaid
	return c.confirm(ctx, o)
}

func (c *Coordinator) OnPaymentFailed(ctx context.Context, msg events.PaymentFailed) error {
	o, err := c.load(ctx, msg.OrderID)
	if err != nil {
		return err
	}
	reason := msg.Reason
	if reason == "" {
		reason = "Payment failed"
	}
	return c.fail(ctx, o, reason)
}

// ReapStale hands orders that stayed pending longer than olderThan to the
// failure path by sending ORDER_FAILED to orders.queue. A refused publish leaves
// the order pending for the next sweep.
func (c *Coordinator) ReapStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ids, err := c.repo.ListStalePending(ctx, c.now().Add(-olderThan), limit)
	if err != nil {
		return 0, apperr.Database("Failed to list stale orders", err)
	}

	reaped := 0
	for _, id := range ids {
		err := events.Publish(ctx, c.pub, events.OrdersQueue, events.TypeOrderFailed, id, events.OrderFailed{
			OrderID: id,
			Reason:  TimeoutReason,
		})
		if err != nil {
			return reaped, apperr.Unavailable("Failed to publish order timeout", err)
		}
		reaped++
	}
	return reaped, nil
}

func (c *Coordinator) load(ctx context.Context, orderID string) (*Order, error) {
	o, err := c.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Database("Failed to load order", err)
	}
	if o == nil {
		return nil, apperr.NotFound("Order", orderID)
	}
	return o, nil
}

// fail moves o to failed and returns its reserved stock. A failed order is
// compensated again on every redelivery; a paid order is left alone.
func (c *Coordinator) fail(ctx context.Context, o *Order, reason string) error {
	log := c.log(ctx).With("orderId", o.ID)

	switch o.Status {
	case StatusFailed:
		log.Info("order already failed, repeating rollback")
		return c.compensate(ctx, o)
	case StatusPending:
	default:
		log.Warn("failure for closed order ignored", "status", o.Status, "reason", reason)
		return nil
	}

	ok, err := c.repo.Transition(ctx, o.ID, StatusFailed, reason)
	if err != nil {
		return apperr.Database("Failed to mark order failed", err)
	}
	if !ok {
		return c.reconcile(ctx, o.ID, func(cur *Order) error { return c.fail(ctx, cur, reason) })
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusFailed)).Inc()
	log.Info("order failed", "reason", reason)
	o.Status = StatusFailed
	o.FailureReason = reason
	return c.compensate(ctx, o)
}

// reconcile reloads an order whose guarded update matched no row and replays
// the step against its current state.
func (c *Coordinator) reconcile(ctx context.Context, orderID string, replay func(*Order) error) error {
	cur, err := c.load(ctx, orderID)
	if err != nil {
		return err
	}
	if cur.Status == StatusPending {
		return apperr.Database("Order changed concurrently", fmt.Errorf("order %s still pending after guarded update", orderID))
	}
	return replay(cur)
}

// compensate publishes a rollback for every line. The ledger only returns what
// it reserved for this order.
func (c *Coordinator) compensate(ctx context.Context, o *Order) error {
	for _, it := range o.Items {
		err := events.Publish(ctx, c.pub, events.InventoryQueue, events.TypeRollbackStock, o.ID, events.RollbackStock{
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
		if err != nil {
			return apperr.Unavailable(fmt.Sprintf("Failed to publish stock rollback for product %d", it.ProductID), err)
		}
	}
	return nil
}

func (c *Coordinator) confirm(ctx context.Context, o *Order) error {
	items := make([]events.ConfirmationItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.ConfirmationItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	err := events.Publish(ctx, c.pub, events.EmailQueue, events.TypeOrderConfirmation, o.ID, events.OrderConfirmation{
		To: o.Email,
		OrderDetails: events.OrderDetails{
			OrderID:    o.ID,
			OrderDate:  o.CreatedAt,
			Items:      items,
			TotalPrice: o.TotalPrice,
			Username:   o.Username,
		},
	})
	if err != nil {
		return apperr.Unavailable("Failed to publish order confirmation", err)
	}
	return nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
