package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultProductTTL is how long a product snapshot stays valid.
const DefaultProductTTL = time.Hour

// Snapshot is the cached name and unit price of a product.
type Snapshot struct {
	ProductID int64   `json:"productId" koanf:"productId"`
	Name      string  `json:"name" koanf:"name"`
	Price     float64 `json:"price" koanf:"price"`
}

func ProductKey(productID int64) string {
	return "product:" + strconv.FormatInt(productID, 10)
}

type ProductCache struct {
	rdb *redis.Client
}

func NewProductCache(rdb *redis.Client) *ProductCache {
	return &ProductCache{rdb: rdb}
}

// Get returns the snapshot for productID. The boolean is false on a cache miss.
func (c *ProductCache) Get(ctx context.Context, productID int64) (Snapshot, bool, error) {
	raw, err := c.rdb.Get(ctx, ProductKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("get %s: %w", ProductKey(productID), err)
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode %s: %w", ProductKey(productID), err)
	}
	if s.ProductID == 0 {
		s.ProductID = productID
	}
	return s, true, nil
}

func (c *ProductCache) Set(ctx context.Context, s Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, ProductKey(s.ProductID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", ProductKey(s.ProductID), err)
	}
	return nil
}
