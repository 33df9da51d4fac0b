package order

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically times out orders stuck in pending, e.g. after a lost
// reservation message.
type Reaper struct {
	coord    *Coordinator
	interval time.Duration
	timeout  time.Duration
	batch    int
	logger   *slog.Logger
}

func NewReaper(coord *Coordinator, interval, timeout time.Duration, batch int, logger *slog.Logger) *Reaper {
	if batch <= 0 {
		batch = 100
	}
	return &Reaper{coord: coord, interval: interval, timeout: timeout, batch: batch, logger: logger}
}

// Run reaps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

// sweep sends one batch per tick. Reaped orders stay pending until their
// ORDER_FAILED is consumed, so the next tick may send them again.
func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.coord.ReapStale(ctx, r.timeout, r.batch)
	if err != nil {
		r.logger.Error("reap stale orders", "reaped", n, "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("reaped stale orders", "count", n)
	}
}
