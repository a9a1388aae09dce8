// Package main is the entrypoint for the local mock of the podcast API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/newscast/internal/cache"
	"github.com/kiranshivaraju/newscast/internal/config"
	"github.com/kiranshivaraju/newscast/internal/mockapi"
	"github.com/kiranshivaraju/newscast/internal/mockapi/backend"
)

const (
	shutdownTimeout   = 30 * time.Second
	requestsPerMinute = 120
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("loading .env", "error", err)
	}

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "port", cfg.MockAPI.Port, "step_delay", cfg.MockAPI.StepDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, closeCache, err := newCache(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer closeCache()

	b := backend.New(c, backend.WithStepDelay(cfg.MockAPI.StepDelay))
	router := mockapi.New(b, c, requestsPerMinute)

	addr := fmt.Sprintf(":%d", cfg.MockAPI.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newCache connects to Redis when redisURL is set and falls back to an
// in-process cache otherwise.
func newCache(ctx context.Context, redisURL string) (cache.Cache, func(), error) {
	if redisURL == "" {
		slog.Info("REDIS_URL not set, using in-memory cache")
		return cache.NewMemoryCache(), func() {}, nil
	}

	rc, err := cache.NewRedisCache(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := rc.Ping(ctx); err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	return rc, func() {
		if err := rc.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}, nil
}
