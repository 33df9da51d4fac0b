package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

func TestHealthAndMetrics(t *testing.T) {
	h := NewBaseRouter(logging.Discard())

	rr := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_request_duration_seconds")
}

func TestCorrelationIDPropagated(t *testing.T) {
	h := NewBaseRouter(logging.Discard())

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderCorrelationID, "corr-42")
	rr := doRequest(h, req)

	assert.Equal(t, "corr-42", rr.Header().Get(HeaderCorrelationID))
}

func TestRecover(t *testing.T) {
	r := NewBaseRouter(logging.Discard())
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rr := do(t, r, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"statusCode":500,"message":"An unexpected error occurred"}`, rr.Body.String())
}
