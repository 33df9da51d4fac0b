package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// MessagesTotal counts consumed deliveries by outcome (ack, retry, rejected, invalid).
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_messages_total",
			Help: "Consumed saga messages by queue, type and outcome",
		},
		[]string{"queue", "type", "outcome"},
	)

	PublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_published_total",
			Help: "Published saga messages by queue, type and result",
		},
		[]string{"queue", "type", "result"},
	)

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_status_transitions_total",
			Help: "Order status transitions by target status",
		},
		[]string{"status"},
	)

	StockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_stock_operations_total",
			Help: "Inventory ledger operations by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// Middleware records request durations labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
