package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns nil, nil when the order does not exist.
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, username string, limit, offset int) ([]Order, error)
	// Transition moves a pending order to status. It reports false, without
	// error, when the order is missing or no longer pending.
	Transition(ctx context.Context, orderID string, to Status, reason string) (bool, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const orderColumns = `id, username, email, total_price, status, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o      Order
		reason sql.NullString
	)
	err := row.Scan(&o.ID, &o.Username, &o.Email, &o.TotalPrice, &o.Status, &reason, &o.CreatedAt, &o.UpdatedAt)
	o.FailureReason = reason.String
	return o, err
}

func (r *repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, username, email, total_price, status, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Username, o.Email, o.TotalPrice, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, line_no, product_id, name, price, quantity)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i+1, it.ProductID, it.Name, it.Price, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
         FROM orders WHERE id = $1`,
		orderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	orders := []Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *repo) ListByUser(ctx context.Context, username string, limit, offset int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+`
         FROM orders WHERE username = $1
         ORDER BY created_at DESC, id
         LIMIT $2 OFFSET $3`,
		username, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items for every order with one query.
func (r *repo) loadItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, product_id, name, price, quantity
         FROM order_items WHERE order_id = ANY($1)
         ORDER BY order_id, line_no`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

func (r *repo) Transition(ctx context.Context, orderID string, to Status, reason string) (bool, error) {
	if !CanTransition(StatusPending, to) {
		return false, fmt.Errorf("transition pending -> %s not allowed", to)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders
         SET status = $2, failure_reason = NULLIF($3, ''), updated_at = NOW()
         WHERE id = $1 AND status = 'pending'`,
		orderID, to, reason,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *repo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM orders
         WHERE status = 'pending' AND created_at < $1
         ORDER BY created_at
         LIMIT $2`,
		createdBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale order: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
