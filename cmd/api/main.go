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

	"github.com/spf13/cobra"

	"appcompat/api/internal/app"
	"appcompat/api/internal/backfill"
	"appcompat/api/internal/config"
	"appcompat/api/internal/logging"
	"appcompat/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "api",
		Short:         "App compatibility discussion API",
		Long:          "Serves post discussions backed by Discord forum threads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	root.AddCommand(serveCmd(cfg, logger))
	root.AddCommand(migrateCmd(cfg, logger))
	root.AddCommand(backfillCmd(cfg, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("command_failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func migrateCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()
			if down {
				return store.RevertMigrations(ctx, db, cfg.MigrationsDir, logger)
			}
			return store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert all applied migrations")
	return cmd
}

func backfillCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Provision threads for posts that have none, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.backfillJob().RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "visited=%d bound=%d failed=%d\n", result.Visited, result.Bound, result.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.BackfillBatch, "batch", cfg.BackfillBatch, "posts to visit in this run")
	cmd.Flags().IntVar(&cfg.BackfillConcurrency, "concurrency", cfg.BackfillConcurrency, "threads provisioned in parallel")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := store.ApplyMigrations(ctx, rt.db, cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	if cfg.BackfillCron != "" {
		scheduler, err := backfill.NewScheduler(rt.backfillJob(), cfg.BackfillCron, logger)
		if err != nil {
			return err
		}
		stopScheduler := scheduler.Start(ctx)
		defer stopScheduler()
	}

	httpServer := app.NewHTTPServer(rt.service(), app.HTTPConfig{
		CORSOrigin:     cfg.CORSOrigin,
		RateRPS:        cfg.RateRPS,
		RateBurst:      cfg.RateBurst,
		TrustProxy:     cfg.TrustProxy,
		MetricsHandler: rt.metrics.Handler(),
		Logger:         logger,
	})
	defer httpServer.Close()
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown_error", "error", err)
	}
	return nil
}
