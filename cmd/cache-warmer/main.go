// Command cache-warmer loads the product catalog into Redis so the order
// service can price new orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/andreasstove999/ecommerce-system/internal/cache"
	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("cache warm failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ServiceWarmer)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	catalogFile := flag.String("catalog", cfg.Catalog.File, "path to the product catalog YAML")
	flag.Parse()

	logger := logging.Init(cfg.Service, logging.Options{Level: cfg.Log.Level})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	products, err := cache.LoadCatalog(*catalogFile)
	if err != nil {
		return err
	}

	rdb, err := cache.NewClient(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	n, err := cache.Warm(ctx, cache.NewProductCache(rdb), products, cfg.Redis.ProductTTL)
	if err != nil {
		return fmt.Errorf("warmed %d of %d products: %w", n, len(products), err)
	}
	logger.Info("product cache warmed", "products", n, "ttl", cfg.Redis.ProductTTL)
	return nil
}
