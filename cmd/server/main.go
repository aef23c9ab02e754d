// Package main is the entry point for the crm-service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/app"
	"github.com/fleveque/crm-service/internal/config"
	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/server"
)

func main() {
	// run() is separate so deferred cleanup executes before os.Exit.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CRM_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// JSON in production, human-readable in development.
	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing useful to do about it.
	defer func() { _ = logger.Sync() }()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			logger.Error("closing application", zap.Error(err))
		}
	}()

	if cfg.LLM.VerifyOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
		err := application.Verify(ctx)
		cancel()
		if errors.Is(err, llm.ErrAuth) {
			return fmt.Errorf("verifying LLM credentials: %w", err)
		}
	}

	deps := server.Deps{
		Reports:       application.Reports,
		Detector:      application.Detector,
		MaterialCount: application.Materials.Len(),
		Usage:         application.Usage,
		Metrics:       application.MetricsHandler,
	}
	srv := server.New(cfg, deps, logger)

	// Graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// In-flight reports may still be waiting on LLM calls.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+5*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}
