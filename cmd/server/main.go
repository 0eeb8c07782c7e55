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
	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/api"
	"github.com/tendant/archive-dump/pkg/archive/config"
	"github.com/tendant/archive-dump/pkg/archive/resolve"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	stores, err := cfg.BuildStores(ctx)
	if err != nil {
		return err
	}
	runs, closeLedger, err := cfg.BuildLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	resolver, err := resolve.New(cfg.Layout(), config.Listers(stores))
	if err != nil {
		return err
	}
	server := api.NewServer(
		resolve.NewHTTPHandler(resolver, stores),
		api.WithLedger(runs),
		api.WithReadiness(storesReady(stores)),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Archive resolver starting", "port", cfg.Port, "storage", cfg.Describe())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server exiting")
	return nil
}

// storesReady lists a key that never exists in every store, which
// exercises credentials and connectivity without reading data.
func storesReady(stores map[string]archive.BlobStore) api.ReadyFunc {
	return func(ctx context.Context) error {
		for name, store := range stores {
			if _, err := store.List(ctx, "healthz-probe/"); err != nil {
				return fmt.Errorf("store %s: %w", name, err)
			}
		}
		return nil
	}
}
