package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/db"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	httpserver "github.com/andreasstove999/ecommerce-system/internal/http"
	"github.com/andreasstove999/ecommerce-system/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("inventory-service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ServiceInventory)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(cfg.Service, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.RunMigrations {
		if err := db.RunMigrations(cfg.Postgres.InventoryDSN, db.SetInventory, logger); err != nil {
			return err
		}
	}
	pool, err := db.NewPool(ctx, cfg.Postgres.InventoryDSN, cfg.Postgres.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := events.Dial(cfg.RabbitMQ.URL, cfg.Service)
	if err != nil {
		return err
	}
	defer conn.Close()

	pub, err := events.NewRabbitPublisher(conn, cfg.Service)
	if err != nil {
		return err
	}
	defer pub.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	ledger := inventory.NewLedger(inventory.NewPostgresRepository(pool), pub, cfg.Service, logger)

	router := events.NewRouter(ch, cfg.Service, logger,
		events.WithPrefetch(cfg.RabbitMQ.Prefetch),
		events.WithTimeout(cfg.RabbitMQ.HandlerTimeout),
		events.WithMaxRetries(cfg.RabbitMQ.MaxRetries),
		events.WithRepublisher(pub),
	)
	inventory.RegisterHandlers(router, ledger)

	handler := httpserver.NewInventoryRouter(ledger, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })
	g.Go(func() error {
		return httpserver.Serve(gctx, httpserver.ServerOptions{
			Addr:            cfg.HTTP.Addr,
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		}, handler, logger)
	})

	err = g.Wait()
	logger.Info("inventory-service stopped")
	return err
}
