// Package main is the entry point for the PharmStock API server.
//
// It loads configuration, connects the PostgreSQL pool, wires the repository
// layer into the notification engine and HTTP handlers, starts the background
// scheduler, and serves HTTP until a shutdown signal arrives.
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

	"github.com/jackc/pgx/v5/pgxpool"

	"pharmstock/internal/api/handlers"
	"pharmstock/internal/auth"
	"pharmstock/internal/config"
	"pharmstock/internal/core"
	"pharmstock/internal/db"
	"pharmstock/internal/external"
	"pharmstock/internal/notifications"
	"pharmstock/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("pharmstock API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	// Database pool.
	pool, err := newPool(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	medicineRepo := db.NewMedicineRepository(pool)
	notificationRepo := db.NewNotificationRepository(pool)
	userRepo := db.NewUserRepository(pool)
	activityRepo := db.NewActivityRepository(pool)

	// Auth service.
	authSvc := auth.NewService(userRepo, auth.Config{
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		TokenTTL:  cfg.Auth.TokenTTL,
	}, logger)

	// Optional webhook fan-out for newly created notifications.
	var publisher notifications.AlertPublisher
	if cfg.Webhook.URL != "" {
		publisher = external.NewWebhookPublisher(
			cfg.Webhook.URL,
			cfg.Webhook.Timeout,
			cfg.Webhook.UserAgent,
			logger,
		)
		logger.Info("alert webhook enabled", "url", cfg.Webhook.URL)
	}

	// Notification engine.
	engine := notifications.NewEngine(medicineRepo, notificationRepo, publisher, notifications.Config{
		Thresholds: notifications.Thresholds{
			LowStock:   cfg.Inventory.LowStockThreshold,
			ExpiryDays: cfg.Inventory.ExpiryThresholdDays,
		},
		ReactivationWindow: cfg.Inventory.ReactivationWindow,
		RetentionWindow:    cfg.Inventory.RetentionWindow,
		AbsoluteTTL:        cfg.Inventory.AbsoluteTTL,
	}, logger)

	// Optional activity archival.
	var archiver scheduler.Archiver
	if cfg.Archive.Dir != "" {
		archiver = scheduler.NewActivityArchiver(
			activityRepo,
			cfg.Archive.Dir,
			cfg.Archive.Retention,
			cfg.Archive.BatchSize,
			logger,
		)
		logger.Info("activity archival enabled", "dir", cfg.Archive.Dir)
	}

	// Background scheduler.
	driver := scheduler.NewDriver(scheduler.Config{
		CheckInterval:      cfg.Scheduler.CheckInterval,
		ReactivateInterval: cfg.Scheduler.ReactivateInterval,
		CleanupInterval:    cfg.Scheduler.CleanupInterval,
		ArchiveInterval:    cfg.Scheduler.ArchiveInterval,
	}, engine, archiver, logger)
	driver.Start(context.Background())
	defer driver.Stop()

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = authSvc
	srv.Pinger = pool

	authHandler := handlers.NewAuthHandler(authSvc, activityRepo, srv.Validator, logger)
	medicineHandler := handlers.NewMedicineHandler(medicineRepo, engine, activityRepo, srv.Validator, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, engine, activityRepo, logger)
	userHandler := handlers.NewUserHandler(userRepo, activityRepo, srv.Validator, logger)
	activityHandler := handlers.NewActivityHandler(activityRepo, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		authHandler.RegisterRoutes,
		medicineHandler.RegisterRoutes,
		notificationHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
		activityHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool builds the pgx connection pool with the configured tuning knobs
// and verifies connectivity before returning.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}
