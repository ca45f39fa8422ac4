package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-gateway/middleware/security/logging"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	boot := logging.New(logging.LevelInfo, nil)

	path := os.Getenv("GATEWAY_CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := loadConfig(path)
	if err != nil {
		boot.Error("config error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	log := logging.New(level, nil)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer func() { _ = a.close() }()

	h, err := a.router()
	if err != nil {
		log.Error("startup error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", map[string]any{
		"addr":          cfg.Server.ListenAddr,
		"store":         cfg.Store.Type,
		"database":      cfg.Database.Driver,
		"stats":         cfg.Stats.Type,
		"burst":         cfg.Burst.Enabled,
		"inlineCleanup": cfg.RateLimit.InlineCleanup,
		"failClosed":    cfg.RateLimit.FailClosed,
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
