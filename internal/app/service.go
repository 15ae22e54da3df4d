package app

import (
	"context"
	"log/slog"
	"time"

	"appcompat/api/internal/threadsync"
)

const (
	endpointForum  = "forum"
	endpointThread = "thread"
)

type dataStore interface {
	Ping(context.Context) error
}

// lockStore is the shared lock backend, when one is configured.
type lockStore interface {
	Ping(context.Context) error
}

type threadSyncer interface {
	Sync(context.Context, string) (threadsync.Discussion, error)
	View(context.Context, string) (threadsync.ThreadView, error)
}

type syncObserver interface {
	ObserveSync(endpoint, code string, elapsed time.Duration)
}

type Service struct {
	store   dataStore
	locks   lockStore
	syncer  threadSyncer
	metrics syncObserver
	logger  *slog.Logger
}

func New(store dataStore, syncer threadSyncer, metrics syncObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		syncer:  syncer,
		metrics: metrics,
		logger:  logger,
	}
}

// NewWithLockStore is New with a shared lock backend included in readiness.
func NewWithLockStore(store dataStore, locks lockStore, syncer threadSyncer, metrics syncObserver, logger *slog.Logger) *Service {
	svc := New(store, syncer, metrics, logger)
	svc.locks = locks
	return svc
}

// SyncDiscussion binds postID to a thread if needed, makes the thread
// readable and returns its latest messages.
func (s *Service) SyncDiscussion(ctx context.Context, postID string) (threadsync.Discussion, error) {
	started := time.Now()
	discussion, err := s.syncer.Sync(ctx, postID)
	s.observe(ctx, endpointForum, "post_id", postID, started, err)
	if err != nil {
		return threadsync.Discussion{}, err
	}
	return discussion, nil
}

// ThreadView lists a thread's messages without provisioning or unarchiving.
func (s *Service) ThreadView(ctx context.Context, threadID string) (threadsync.ThreadView, error) {
	started := time.Now()
	view, err := s.syncer.View(ctx, threadID)
	s.observe(ctx, endpointThread, "thread_id", threadID, started, err)
	if err != nil {
		return threadsync.ThreadView{}, err
	}
	return view, nil
}

func (s *Service) observe(ctx context.Context, endpoint, idKey, id string, started time.Time, err error) {
	elapsed := time.Since(started)
	code := "OK"
	if err != nil {
		_, code, _, _ = mapError(err)
		level := slog.LevelWarn
		if code == "NOT_FOUND" {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "discussion_sync_failed",
			"request_id", requestIDFromContext(ctx),
			"endpoint", endpoint,
			idKey, id,
			"code", code,
			"error", err.Error(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	if s.metrics != nil {
		s.metrics.ObserveSync(endpoint, code, elapsed)
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingLocks reports the shared lock backend's health; nil when locks are
// in-process.
func (s *Service) PingLocks(ctx context.Context) error {
	if s.locks == nil {
		return nil
	}
	return s.locks.Ping(ctx)
}

func (s *Service) HasLockStore() bool {
	return s.locks != nil
}
