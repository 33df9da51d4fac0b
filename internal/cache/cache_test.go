package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestProductCache_GetSet(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewProductCache(rdb)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, Snapshot{ProductID: 1, Name: "Keyboard", Price: 50}, 0))

	got, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Snapshot{ProductID: 1, Name: "Keyboard", Price: 50}, got)
	assert.Equal(t, DefaultProductTTL, mr.TTL("product:1"))

	mr.FastForward(DefaultProductTTL + time.Second)
	_, ok, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductCache_ExternalWriterShape(t *testing.T) {
	mr, rdb := newRedis(t)
	// snapshots written by other producers may omit the id
	require.NoError(t, mr.Set("product:7", `{"price":12.5,"name":"Mouse"}`))

	got, ok, err := NewProductCache(rdb).Get(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Snapshot{ProductID: 7, Name: "Mouse", Price: 12.5}, got)
}

func TestProductCache_Corrupt(t *testing.T) {
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("product:3", `not json`))

	_, _, err := NewProductCache(rdb).Get(context.Background(), 3)
	require.Error(t, err)
}

func TestDedupStore(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewDedupStore(rdb, "email:sent:", 48*time.Hour)
	ctx := context.Background()

	first, err := s.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 48*time.Hour, mr.TTL("email:sent:order-1"))

	again, err := s.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, s.Release(ctx, "order-1"))
	afterRelease, err := s.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, afterRelease)
}

func TestLoadCatalogAndWarm(t *testing.T) {
	_, rdb := newRedis(t)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - productId: 1
    name: Keyboard
    price: 50
  - productId: 2
    name: Mouse
    price: 19.99
`), 0o600))

	products, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, products, 2)

	c := NewProductCache(rdb)
	n, err := Warm(context.Background(), c, products, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok, err := c.Get(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Mouse", got.Name)
	assert.InDelta(t, 19.99, got.Price, 0.0001)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - productId: 0
    name: Ghost
    price: -1
`), 0o600))

	_, err := LoadCatalog(path)
	require.ErrorContains(t, err, "productId must be positive")
	require.ErrorContains(t, err, "price must not be negative")

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
