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

	"github.com/andreasstove999/ecommerce-system/internal/cache"
	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/email"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	httpserver "github.com/andreasstove999/ecommerce-system/internal/http"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("email-service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ServiceEmail)
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

	conn, err := events.Dial(cfg.RabbitMQ.URL, cfg.Service)
	if err != nil {
		return err
	}
	defer conn.Close()

	// only used to requeue deliveries for retry
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

	sender := email.NewSMTPSender(email.SMTPOptions{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	notifier := email.NewNotifier(cache.NewDedupStore(rdb, email.DedupPrefix, cfg.Redis.DedupTTL), sender, cfg.SMTP.From, logger)

	router := events.NewRouter(ch, cfg.Service, logger,
		events.WithPrefetch(cfg.RabbitMQ.Prefetch),
		events.WithTimeout(cfg.RabbitMQ.HandlerTimeout),
		events.WithMaxRetries(cfg.RabbitMQ.MaxRetries),
		events.WithRepublisher(pub),
	)
	email.RegisterHandlers(router, notifier)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })
	g.Go(func() error {
		return httpserver.Serve(gctx, httpserver.ServerOptions{
			Addr:            cfg.HTTP.Addr,
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		}, httpserver.NewBaseRouter(logger), logger)
	})

	err = g.Wait()
	logger.Info("email-service stopped")
	return err
}
