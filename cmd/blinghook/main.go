// blinghook receives order webhooks from the Bling platform and
// reconciles them into Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"blinghook/internal/config"
	"blinghook/internal/log"
	"blinghook/internal/store"
	"blinghook/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "blinghook: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := store.Bootstrap(ctx, db); err != nil {
		return err
	}

	rec := store.NewReconciler(db)
	srv := webhook.New(cfg, rec, log.WithComponent("webhook"))

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
