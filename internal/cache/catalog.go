package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadCatalog reads the product list used to warm the cache:
//
//	products:
//	  - productId: 1
//	    name: Keyboard
//	    price: 49.99
func LoadCatalog(path string) ([]Snapshot, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	var products []Snapshot
	if err := k.Unmarshal("products", &products); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	var errs []error
	for i, p := range products {
		if p.ProductID <= 0 {
			errs = append(errs, fmt.Errorf("products[%d]: productId must be positive", i))
		}
		if p.Price < 0 {
			errs = append(errs, fmt.Errorf("products[%d]: price must not be negative", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return products, nil
}

// Warm writes every snapshot with ttl and returns how many were written.
func Warm(ctx context.Context, c *ProductCache, products []Snapshot, ttl time.Duration) (int, error) {
	for i, p := range products {
		if err := c.Set(ctx, p, ttl); err != nil {
			return i, err
		}
	}
	return len(products), nil
}
