package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"appcompat/api/internal/app"
	"appcompat/api/internal/backfill"
	"appcompat/api/internal/config"
	"appcompat/api/internal/discord"
	"appcompat/api/internal/lock"
	"appcompat/api/internal/metrics"
	"appcompat/api/internal/store"
	"appcompat/api/internal/threadsync"
)

// runtime holds the wired components shared by serve and backfill.
type runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *sql.DB
	store       *store.PostgresStore
	redisLocks  *lock.Redis
	metrics     *metrics.Metrics
	provisioner *threadsync.Provisioner
	syncer      *threadsync.Syncer
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   store.NewPostgresStore(db),
		metrics: metrics.New(),
	}

	lockOpts := lock.Options{TTL: cfg.ThreadLockTTL, Wait: cfg.ThreadLockWait}
	var locker lock.Locker
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("provision_locks", "backend", "redis")
		redisLocks, err := lock.NewRedis(cfg.RedisURL, lockOpts)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		rt.redisLocks = redisLocks
		locker = redisLocks
	} else {
		logger.Info("provision_locks", "backend", "local")
		locker = lock.NewLocal(lockOpts)
	}

	client, err := discord.NewClient(discord.Config{
		Token:       cfg.DiscordBotToken,
		APIBase:     cfg.DiscordAPIBase,
		CallTimeout: cfg.DiscordCallTimeout,
		Logger:      logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.provisioner = threadsync.NewProvisioner(rt.store, client, threadsync.ProvisionerConfig{
		ParentChannelID: cfg.DiscordForumChannelID,
		Locker:          locker,
		Logger:          logger,
		Recorder:        rt.metrics,
	})
	reconciler := threadsync.NewReconciler(client, threadsync.ReconcilerConfig{
		SettleInterval: cfg.SettleInterval,
		SettleTimeout:  cfg.SettleTimeout,
		Logger:         logger,
		Recorder:       rt.metrics,
	})
	rt.syncer = threadsync.NewSyncer(rt.store, client, rt.provisioner, reconciler, threadsync.SyncerConfig{
		WebBase: cfg.DiscordWebBase,
		GuildID: cfg.DiscordGuildID,
		Logger:  logger,
	})
	return rt, nil
}

func (rt *runtime) service() *app.Service {
	if rt.redisLocks != nil {
		return app.NewWithLockStore(rt.store, rt.redisLocks, rt.syncer, rt.metrics, rt.logger)
	}
	return app.New(rt.store, rt.syncer, rt.metrics, rt.logger)
}

func (rt *runtime) backfillJob() *backfill.Job {
	return backfill.NewJob(rt.store, rt.provisioner, backfill.Config{
		Batch:       rt.cfg.BackfillBatch,
		Concurrency: rt.cfg.BackfillConcurrency,
		Logger:      rt.logger,
		Recorder:    rt.metrics,
	})
}

func (rt *runtime) Close() {
	if rt.redisLocks != nil {
		_ = rt.redisLocks.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}
