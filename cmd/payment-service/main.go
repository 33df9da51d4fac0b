package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/andreasstove999/ecommerce-system/internal/auth"
	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	httpserver "github.com/andreasstove999/ecommerce-system/internal/http"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/payment"
)

func main() {
	if err := run(); err != nil {
		slog.Error("payment-service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ServicePayment)
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

	sim := payment.NewSimulator(pub, logger)
	handler := httpserver.NewPaymentRouter(sim, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), logger)

	err = httpserver.Serve(ctx, httpserver.ServerOptions{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, handler, logger)
	logger.Info("payment-service stopped")
	return err
}
