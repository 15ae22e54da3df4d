package threadsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"appcompat/api/internal/discord"
)

const (
	DefaultSettleInterval = time.Second
	DefaultSettleTimeout  = 5 * time.Second
)

type ReconcilerConfig struct {
	// SettleInterval is the pause between unarchiving and each re-read.
	SettleInterval time.Duration
	// SettleTimeout bounds the total wait for the unarchive to become visible.
	SettleTimeout time.Duration
	Logger        *slog.Logger
	Recorder      Recorder
}

// Reconciler makes sure a bound thread is unarchived before its messages are
// read.
type Reconciler struct {
	messenger Messenger
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	recorder  Recorder
}

func NewReconciler(messenger Messenger, cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		messenger: messenger,
		interval:  cfg.SettleInterval,
		timeout:   cfg.SettleTimeout,
		logger:    cfg.Logger,
		recorder:  cfg.Recorder,
	}
	if r.interval <= 0 {
		r.interval = DefaultSettleInterval
	}
	if r.timeout <= 0 {
		r.timeout = DefaultSettleTimeout
	}
	if r.timeout < r.interval {
		r.timeout = r.interval
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	return r
}

// Ensure returns the thread's metadata once it reads as unarchived.
func (r *Reconciler) Ensure(ctx context.Context, threadID string) (discord.ChannelMeta, error) {
	meta, err := r.messenger.GetChannel(ctx, threadID)
	if err != nil {
		return discord.ChannelMeta{}, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}
	if !meta.Kind.IsThread() {
		return discord.ChannelMeta{}, fmt.Errorf("%w: channel %s has type %d", ErrInvalidResourceKind, threadID, meta.Type)
	}
	if !meta.Archived {
		return meta, nil
	}

	if err := r.messenger.SetArchived(ctx, threadID, false); err != nil {
		return discord.ChannelMeta{}, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}
	r.recorder.ThreadUnarchived()
	r.logger.Info("thread_unarchived", "thread_id", threadID)

	return r.settle(ctx, threadID)
}

// settle polls until the platform reports the thread unarchived.
func (r *Reconciler) settle(ctx context.Context, threadID string) (discord.ChannelMeta, error) {
	deadline := time.NewTimer(r.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(r.interval)
	defer tick.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return discord.ChannelMeta{}, fmt.Errorf("%w: %w", ErrReconciliationFailed, ctx.Err())
		case <-deadline.C:
			return discord.ChannelMeta{}, fmt.Errorf("%w: thread %s still archived after %s", ErrReconciliationFailed, threadID, r.timeout)
		case <-tick.C:
		}

		meta, err := r.messenger.GetChannel(ctx, threadID)
		if err != nil {
			return discord.ChannelMeta{}, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
		}
		if !meta.Archived {
			r.logger.Debug("thread_settled", "thread_id", threadID, "attempts", attempt)
			return meta, nil
		}
	}
}
