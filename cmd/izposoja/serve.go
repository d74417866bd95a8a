package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/api"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/notify"
	"github.com/erazemk/izposoja/internal/store"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringP("addr", "a", ":8080", "listen address")
	cmd.Flags().Int64("admin", 0, "employee ID that receives every new request")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	closeLog, err := setupLogger(cfg.Log.Path, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer closeLog()

	// Auto-init if the database does not exist yet.
	if _, err := os.Stat(cfg.DB.Path); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DB.Path, cfg.Admin.Username)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.DB.Path, cfg.Admin.Username, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DB.Path)

	ctx := context.Background()
	checkAdminEmployee(ctx, database, cfg.Lending.AdminEmployeeID)

	if n, err := store.PurgeExpiredTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired revoked tokens", "count", n)
	}

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	hub := notify.NewHub(cfg.Notify.QueueSize)
	defer hub.Close()
	hub.AllowOrigins(cfg.HTTP.AllowedOrigins...)

	publisher, closeRelay, err := newPublisher(cfg, hub)
	if err != nil {
		return err
	}
	defer closeRelay()

	svc := lending.NewService(database, publisher, lending.Options{
		AdminEmployeeID:         cfg.Lending.AdminEmployeeID,
		StockPolicy:             lending.StockPolicy(cfg.Lending.StockPolicy),
		BorrowedRequiresRemarks: cfg.Lending.BorrowedRequiresRemarks,
	})

	handler := api.LoggingMiddleware(api.NewRouter(api.Deps{
		DB:        database,
		JWTSecret: jwtSecret,
		Lending:   svc,
		Hub:       hub,
		Publisher: publisher,
		Metrics:   cfg.Metrics.Enabled,
	}))

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown.
		hub.Close()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.HTTP.Addr, "stock_policy", cfg.Lending.StockPolicy)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// newPublisher returns the hub itself, or a Redis relay in front of it when
// redis.addr is configured so that several instances share notifications.
func newPublisher(cfg *config.Config, hub *notify.Hub) (notify.Publisher, func(), error) {
	if cfg.Redis.Addr == "" {
		return hub, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	relay := notify.NewRelay(rdb, hub)
	if err := relay.Start(ctx); err != nil {
		cancel()
		rdb.Close()
		return nil, nil, fmt.Errorf("starting notification relay: %w", err)
	}
	slog.Info("notification relay started", "redis", cfg.Redis.Addr, "channel", notify.RelayChannel)

	return relay, func() {
		cancel()
		if err := relay.Close(); err != nil {
			slog.Warn("closing notification relay", "error", err)
		}
	}, nil
}

// checkAdminEmployee warns when the configured approver is missing from the
// directory. Submissions fail until it exists.
func checkAdminEmployee(ctx context.Context, database *sql.DB, id int64) {
	emp, err := store.GetEmployee(ctx, database, id)
	if err != nil {
		slog.Warn("failed to look up admin employee", "employee_id", id, "error", err)
		return
	}
	if emp == nil {
		slog.Warn("admin employee not found, borrow and lend requests will fail", "employee_id", id)
		return
	}
	slog.Info("admin employee", "employee_id", id, "name", emp.DisplayName())
}
