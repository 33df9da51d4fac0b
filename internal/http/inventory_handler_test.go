package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

func TestGetInventory(t *testing.T) {
	svc := &fakeInventory{getFunc: func(ctx context.Context, productID int64) (inventory.Record, error) {
		if productID == 2 {
			return inventory.Record{}, apperr.NotFound("Inventory", "2")
		}
		return inventory.Record{ProductID: productID, Available: 7}, nil
	}}
	h := NewInventoryRouter(svc, testVerifier, logging.Discard())

	rr := do(t, h, http.MethodGet, "/inventory/1", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"productId":1,"available":7}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/inventory/2", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"statusCode":404,"message":"Inventory with identifier \"2\" not found"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/inventory/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdjustInventory(t *testing.T) {
	var gotID int64
	var gotAvail int
	svc := &fakeInventory{setFunc: func(ctx context.Context, productID int64, available int) error {
		gotID, gotAvail = productID, available
		return nil
	}}
	h := NewInventoryRouter(svc, testVerifier, logging.Discard())

	rr := do(t, h, http.MethodPost, "/inventory/adjust", "", `{"productId":3,"available":5}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodPost, "/inventory/adjust", bearer(t, "admin"), `{"productId":3,"available":0}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
	assert.Equal(t, int64(3), gotID)
	assert.Equal(t, 0, gotAvail)

	rr = do(t, h, http.MethodPost, "/inventory/adjust", bearer(t, "admin"), `{"productId":3,"available":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, h, http.MethodPost, "/inventory/adjust", bearer(t, "admin"), `{"productId":3}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
