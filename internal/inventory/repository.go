package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/internal/dedup"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, productID int64) (Record, error)
	SetAvailable(ctx context.Context, productID int64, available int) error
	Reserve(ctx context.Context, c Change) (Result, error)
	Rollback(ctx context.Context, c Change) (Result, error)
}

type PostgresRepository struct {
	pool  DBPool
	dedup *dedup.Repository
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, dedup: dedup.NewRepository(pool)}
}

func (r *PostgresRepository) Get(ctx context.Context, productID int64) (Record, error) {
	var rec Record
	row := r.pool.QueryRow(ctx, `SELECT product_id, available FROM inventory WHERE product_id=$1`, productID)
	if err := row.Scan(&rec.ProductID, &rec.Available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("select inventory: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) SetAvailable(ctx context.Context, productID int64, available int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory(product_id, available)
		VALUES($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET available=EXCLUDED.available, updated_at=now()
	`, productID, available)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}

// Reserve decrements stock for one line in a single transaction together with
// the processed-event record and the order's reservation row. The decrement is
// conditional, so concurrent reservations can never drive stock negative.
func (r *PostgresRepository) Reserve(ctx context.Context, c Change) (Result, error) {
	return r.inTx(ctx, c, func(tx pgx.Tx) (Result, error) {
		if c.OrderID != "" {
			var reserved int
			err := tx.QueryRow(ctx, `
				INSERT INTO stock_reservations (order_id, product_id, quantity)
				VALUES ($1, $2, $3)
				ON CONFLICT (order_id, product_id) DO UPDATE
				SET quantity = stock_reservations.quantity + EXCLUDED.quantity, updated_at = now()
				WHERE NOT stock_reservations.released
				RETURNING quantity
			`, c.OrderID, c.ProductID, c.Quantity).Scan(&reserved)
			if errors.Is(err, pgx.ErrNoRows) {
				return Result{Outcome: Fenced}, nil
			}
			if err != nil {
				return Result{}, fmt.Errorf("upsert reservation: %w", err)
			}
		}

		var available int
		err := tx.QueryRow(ctx, `
			UPDATE inventory
			SET available = available - $2, updated_at = now()
			WHERE product_id = $1 AND available >= $2
			RETURNING available
		`, c.ProductID, c.Quantity).Scan(&available)
		if err == nil {
			return Result{Outcome: Applied, Available: available}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Result{}, fmt.Errorf("decrement inventory: %w", err)
		}

		// Nothing matched: either the product is unknown or stock is short.
		err = tx.QueryRow(ctx, `SELECT available FROM inventory WHERE product_id=$1`, c.ProductID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		if err != nil {
			return Result{}, fmt.Errorf("select inventory: %w", err)
		}
		return Result{}, &InsufficientStockError{ProductID: c.ProductID, Available: available, Requested: c.Quantity}
	})
}

// Rollback returns stock. With an order id only the quantity still reserved for
// that order is returned and the reservation is released; releasing a missing
// reservation leaves a fence that stops a late reservation.
func (r *PostgresRepository) Rollback(ctx context.Context, c Change) (Result, error) {
	return r.inTx(ctx, c, func(tx pgx.Tx) (Result, error) {
		qty := c.Quantity
		if c.OrderID != "" {
			err := tx.QueryRow(ctx, `
				INSERT INTO stock_reservations (order_id, product_id, quantity, released)
				VALUES ($1, $2, 0, true)
				ON CONFLICT (order_id, product_id) DO UPDATE
				SET released = true, updated_at = now()
				WHERE NOT stock_reservations.released
				RETURNING quantity
			`, c.OrderID, c.ProductID).Scan(&qty)
			if errors.Is(err, pgx.ErrNoRows) {
				return Result{Outcome: NothingReserved}, nil
			}
			if err != nil {
				return Result{}, fmt.Errorf("release reservation: %w", err)
			}
			if qty == 0 {
				return Result{Outcome: NothingReserved}, nil
			}
		}

		var available int
		err := tx.QueryRow(ctx, `
			UPDATE inventory
			SET available = available + $2, updated_at = now()
			WHERE product_id = $1
			RETURNING available
		`, c.ProductID, qty).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		if err != nil {
			return Result{}, fmt.Errorf("increment inventory: %w", err)
		}
		return Result{Outcome: Applied, Available: available, Returned: qty}, nil
	})
}

// inTx records the event as processed and runs fn in the same transaction.
// A duplicate event commits nothing; an error from fn rolls everything back.
func (r *PostgresRepository) inTx(ctx context.Context, c Change, fn func(tx pgx.Tx) (Result, error)) (Result, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fresh, err := r.dedup.WithExecutor(tx).MarkProcessed(ctx, c.Consumer, c.EventID)
	if err != nil {
		return Result{}, err
	}
	if !fresh {
		return Result{Outcome: Duplicate}, nil
	}

	res, err := fn(tx)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}
