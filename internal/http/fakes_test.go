package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/internal/order"
	"github.com/andreasstove999/ecommerce-system/internal/payment"
)

const testSecret = "test-secret"

var testVerifier = auth.NewVerifier(testSecret, "microcommerce")

type fakeOrders struct {
	createFunc  func(ctx context.Context, user auth.User, lines []order.Line) (*order.Order, error)
	getFunc     func(ctx context.Context, orderID, owner string) (*order.Order, error)
	historyFunc func(ctx context.Context, owner string, page, limit int) ([]order.Order, int, int, error)
}

func (f *fakeOrders) CreateOrder(ctx context.Context, user auth.User, lines []order.Line) (*order.Order, error) {
	return f.createFunc(ctx, user, lines)
}

func (f *fakeOrders) GetOrderByID(ctx context.Context, orderID, owner string) (*order.Order, error) {
	return f.getFunc(ctx, orderID, owner)
}

func (f *fakeOrders) GetOrderHistory(ctx context.Context, owner string, page, limit int) ([]order.Order, int, int, error) {
	return f.historyFunc(ctx, owner, page, limit)
}

type fakeInventory struct {
	getFunc func(ctx context.Context, productID int64) (inventory.Record, error)
	setFunc func(ctx context.Context, productID int64, available int) error
}

func (f *fakeInventory) GetInventoryByProductID(ctx context.Context, productID int64) (inventory.Record, error) {
	return f.getFunc(ctx, productID)
}

func (f *fakeInventory) SetAvailable(ctx context.Context, productID int64, available int) error {
	return f.setFunc(ctx, productID, available)
}

type fakePayments struct {
	got []payment.Request
	res payment.Result
	err error
}

func (f *fakePayments) ProcessPayment(ctx context.Context, req payment.Request) (payment.Result, error) {
	f.got = append(f.got, req)
	return f.res, f.err
}

func bearer(t *testing.T, username string) string {
	t.Helper()
	tok, err := testVerifier.Issue(auth.User{Username: username, Email: username + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, target, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
