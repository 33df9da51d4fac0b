package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

const retryHeader = "x-retry-count"

// HandlerFunc processes one validated envelope. A nil return acknowledges the
// delivery; an error rejects it, or retries it when apperr.Retryable says so.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Republisher puts a delivery body back on its queue.
type Republisher interface {
	Republish(ctx context.Context, queue string, body []byte, headers amqp.Table) error
}

// Router consumes a set of queues on one channel and dispatches each delivery to
// the handler registered for its message type.
type Router struct {
	ch         *amqp.Channel
	name       string
	logger     *slog.Logger
	retry      Republisher
	prefetch   int
	maxRetries int
	timeout    time.Duration

	queues []string
	routes map[string]map[string]HandlerFunc
}

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.timeout = d } }
func WithMaxRetries(n int) RouterOption        { return func(r *Router) { r.maxRetries = n } }
func WithRepublisher(p Republisher) RouterOption {
	return func(r *Router) { r.retry = p }
}

// NewRouter builds a router. Defaults: prefetch 20, timeout 10s, no retries.
func NewRouter(ch *amqp.Channel, name string, logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		ch:       ch,
		name:     name,
		logger:   logger,
		prefetch: 20,
		timeout:  10 * time.Second,
		routes:   map[string]map[string]HandlerFunc{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers h for msgType deliveries on queue.
func (r *Router) Handle(queue, msgType string, h HandlerFunc) {
	if _, ok := r.routes[queue]; !ok {
		r.routes[queue] = map[string]HandlerFunc{}
		r.queues = append(r.queues, queue)
	}
	r.routes[queue][msgType] = h
}

// Run consumes every registered queue until ctx is cancelled or a delivery
// channel closes.
func (r *Router) Run(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, queue := range r.queues {
		queue := queue
		if err := DeclareQueue(r.ch, queue); err != nil {
			return err
		}
		tag := r.name + "." + queue
		msgs, err := r.ch.Consume(
			queue,
			tag,
			false, // manual ack
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}

		g.Go(func() error {
			return r.consume(gctx, queue, tag, msgs)
		})
		r.logger.Info("consuming", "queue", queue)
	}
	return g.Wait()
}

func (r *Router) consume(ctx context.Context, queue, tag string, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			_ = r.ch.Cancel(tag, false)
			r.logger.Info("stopping consumer", "queue", queue)
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel for %s closed", queue)
			}
			r.dispatch(ctx, queue, d)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, queue string, d amqp.Delivery) {
	env, err := ParseEnvelope(d.Body)
	if err != nil {
		r.logger.Warn("rejecting invalid envelope", "queue", queue, "error", err)
		metrics.MessagesTotal.WithLabelValues(queue, "", "invalid").Inc()
		_ = d.Nack(false, false)
		return
	}

	log := r.logger.With(
		"queue", queue,
		"type", env.Type,
		"eventId", env.EventID,
		"correlationId", env.CorrelationID,
		"partitionKey", env.PartitionKey,
	)

	h, ok := r.routes[queue][env.Type]
	if !ok {
		err := apperr.Processing(fmt.Sprintf("unknown message type %q on %s", env.Type, queue), nil)
		log.Error("rejecting message", "error", err)
		metrics.MessagesTotal.WithLabelValues(queue, env.Type, "rejected").Inc()
		_ = d.Nack(false, false)
		return
	}

	hctx := WithMeta(ctx, Meta{CorrelationID: env.CorrelationID, CausationID: env.EventID})
	hctx = logging.WithCtx(hctx, log)
	// in-flight handlers finish even when shutdown cancels ctx
	hctx, cancel := context.WithTimeout(context.WithoutCancel(hctx), r.timeout)
	err = h(hctx, env)
	cancel()

	if err == nil {
		metrics.MessagesTotal.WithLabelValues(queue, env.Type, "ack").Inc()
		_ = d.Ack(false)
		return
	}

	attempt := retryCount(d.Headers)
	if apperr.Retryable(err) && r.retry != nil && attempt < r.maxRetries {
		headers := amqp.Table{}
		for k, v := range d.Headers {
			headers[k] = v
		}
		headers[retryHeader] = int32(attempt + 1)

		rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		rerr := r.retry.Republish(rctx, queue, d.Body, headers)
		rcancel()
		if rerr == nil {
			log.Warn("handler failed, retrying", "attempt", attempt+1, "error", err)
			metrics.MessagesTotal.WithLabelValues(queue, env.Type, "retry").Inc()
			_ = d.Ack(false)
			return
		}
		log.Error("republish for retry failed", "error", rerr)
	}

	log.Error("handler failed, dead-lettering", "attempt", attempt, "error", err)
	metrics.MessagesTotal.WithLabelValues(queue, env.Type, "rejected").Inc()
	_ = d.Nack(false, false)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
