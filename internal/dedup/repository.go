package dedup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Executor represents the subset of pgx methods required for dedup operations.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Repository records which events a consumer has already applied.
type Repository struct {
	executor Executor
}

func NewRepository(exec Executor) *Repository {
	return &Repository{executor: exec}
}

// WithExecutor returns a shallow copy using the provided executor (e.g., a transaction).
func (r *Repository) WithExecutor(exec Executor) *Repository {
	return &Repository{executor: exec}
}

// MarkProcessed records eventID for consumer. It reports false when the event was
// already recorded, in which case the caller must skip its side effects. Run it
// inside the transaction that applies those effects.
func (r *Repository) MarkProcessed(ctx context.Context, consumerName, eventID string) (bool, error) {
	tag, err := r.executor.Exec(ctx, `
		INSERT INTO processed_events (consumer_name, event_id)
		VALUES ($1, $2)
		ON CONFLICT (consumer_name, event_id) DO NOTHING
	`, consumerName, eventID)
	if err != nil {
		return false, fmt.Errorf("insert processed event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
