package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"unitbank/config"
	"unitbank/core/treasury"
	"unitbank/observability/logging"
	"unitbank/rpc"
	"unitbank/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("unitbankd", cfg.Env)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	node := treasury.NewNode(db, treasury.WithLogger(logger))

	limiter := rpc.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           rpc.NewServer(node, logger).Router(limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", slog.String("address", cfg.ListenAddress))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.String("error", err.Error()))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	logger.Info("stopped")
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendBolt:
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "unitbank.db"))
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "leveldb"))
	}
}
