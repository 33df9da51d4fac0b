package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

const HeaderCorrelationID = "X-Correlation-Id"

// CorrelationID takes the caller's correlation id, or makes one, and carries it
// into the request logger and every message the request publishes.
func CorrelationID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(HeaderCorrelationID)
			if cid == "" {
				cid = uuid.NewString()
			}
			w.Header().Set(HeaderCorrelationID, cid)

			ctx := events.WithMeta(r.Context(), events.Meta{CorrelationID: cid})
			ctx = logging.WithCtx(ctx, logger.With("correlationId", cid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromCtx(r.Context(), nil).Error("panic", "panic", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, apperr.ToBody(nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.FromCtx(r.Context(), nil).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireAuth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, r, apperr.Unauthorized("Missing bearer token"))
				return
			}
			user, err := v.Parse(strings.TrimSpace(token))
			if err != nil {
				logging.FromCtx(r.Context(), nil).Warn("rejected token", "error", err)
				writeError(w, r, apperr.Unauthorized("Invalid or expired token"))
				return
			}
			ctx := auth.WithUser(r.Context(), user)
			ctx = logging.WithCtx(ctx, logging.FromCtx(ctx, nil).With("username", user.Username))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
