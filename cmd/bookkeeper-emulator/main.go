// Package main runs a local emulator of the bookkeeping backend for
// development and testing. It serves the same /sort, /collect and /config
// endpoints over journal files kept in a bbolt database.
//
// Environment:
//
//	PORT         listen port (default 5005)
//	DB_PATH      bbolt file (default ./data/bookkeeper.db)
//	CONFIG_PATH  ledger config YAML (default ./data/CONFIG.yml)
//	LOG_LEVEL    debug, info, warn or error (default info)
//
// SIGHUP reloads the config file; SIGINT and SIGTERM shut down.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zahanm/collect-beans/internal/emulator/api"
	"github.com/zahanm/collect-beans/internal/emulator/ledger"
	"github.com/zahanm/collect-beans/internal/emulator/store"
)

const (
	defaultPort       = "5005"
	defaultDBPath     = "./data/bookkeeper.db"
	defaultConfigPath = "./data/CONFIG.yml"
	shutdownTimeout   = 10 * time.Second
)

func main() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnvOrDefault("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(); err != nil {
		slog.Error("emulator failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run() error {
	port := getEnvOrDefault("PORT", defaultPort)
	dbPath := getEnvOrDefault("DB_PATH", defaultDBPath)
	configPath := getEnvOrDefault("CONFIG_PATH", defaultConfigPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", dbPath, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	l, err := ledger.New(st, configPath)
	if err != nil {
		return fmt.Errorf("failed to load ledger from %s: %w", configPath, err)
	}
	files, _ := l.Files()
	slog.Info("ledger loaded", "db_path", dbPath, "config_path", configPath, "journal_files", len(files))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.NewRouter(l, ledger.NewSession(l), ledger.NewCollector(l)),
		ReadHeaderTimeout: 10 * time.Second,
		// Importer runs can take a while; the router's own timeout is the bound.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadOnHangup(ctx, l)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting bookkeeper emulator", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func reloadOnHangup(ctx context.Context, l *ledger.Ledger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := l.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
			}
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
