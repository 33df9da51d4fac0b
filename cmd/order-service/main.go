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
	"github.com/andreasstove999/ecommerce-system/internal/cache"
	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/db"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	httpserver "github.com/andreasstove999/ecommerce-system/internal/http"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/order"
	"github.com/andreasstove999/ecommerce-system/internal/sequence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order-service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ServiceOrder)
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

	// DB
	if cfg.Postgres.RunMigrations {
		if err := db.RunMigrations(cfg.Postgres.OrderDSN, db.SetOrder, logger); err != nil {
			return err
		}
	}
	database, err := db.Open(ctx, cfg.Postgres.OrderDSN, int(cfg.Postgres.MaxConns))
	if err != nil {
		return err
	}
	defer database.Close()

	// Redis
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

	// RabbitMQ
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

	coord := order.NewCoordinator(
		order.NewRepository(database),
		cache.NewProductCache(rdb),
		events.SequencedPublisher{Next: pub, Seq: sequence.NewRepository(database)},
		logger,
	)

	router := events.NewRouter(ch, cfg.Service, logger,
		events.WithPrefetch(cfg.RabbitMQ.Prefetch),
		events.WithTimeout(cfg.RabbitMQ.HandlerTimeout),
		events.WithMaxRetries(cfg.RabbitMQ.MaxRetries),
		events.WithRepublisher(pub),
	)
	order.RegisterHandlers(router, coord)

	reaper := order.NewReaper(coord, cfg.Order.ReapInterval, cfg.Order.PendingTimeout, cfg.Order.ReapBatch, logger)
	handler := httpserver.NewOrderRouter(coord, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error { return httpserver.Serve(gctx, serverOptions(cfg), handler, logger) })

	err = g.Wait()
	logger.Info("order-service stopped")
	return err
}

func serverOptions(cfg config.Config) httpserver.ServerOptions {
	return httpserver.ServerOptions{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}
}
