// Package backfill provisions discussion threads for posts that never got
// one, either on demand or on a cron schedule.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"appcompat/api/internal/store"
)

type postLister interface {
	ListUnboundPosts(ctx context.Context, limit int) ([]store.Post, error)
}

type provisioner interface {
	Ensure(ctx context.Context, post store.Post) (string, error)
}

type resultRecorder interface {
	BackfillResult(result string)
}

type Config struct {
	Batch       int
	Concurrency int
	Logger      *slog.Logger
	Recorder    resultRecorder
}

type Job struct {
	posts       postLister
	provisioner provisioner
	batch       int
	concurrency int
	logger      *slog.Logger
	recorder    resultRecorder
}

type Result struct {
	Visited int
	Bound   int
	Failed  int
}

func NewJob(posts postLister, provisioner provisioner, cfg Config) *Job {
	job := &Job{
		posts:       posts,
		provisioner: provisioner,
		batch:       cfg.Batch,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
	}
	if job.batch <= 0 {
		job.batch = 50
	}
	if job.concurrency <= 0 {
		job.concurrency = 1
	}
	if job.logger == nil {
		job.logger = slog.Default()
	}
	return job
}

// RunOnce provisions threads for one batch of the oldest unbound posts.
// Individual failures are logged and counted; only listing errors and
// cancellation fail the run.
func (j *Job) RunOnce(ctx context.Context) (Result, error) {
	started := time.Now()
	posts, err := j.posts.ListUnboundPosts(ctx, j.batch)
	if err != nil {
		return Result{}, fmt.Errorf("backfill: %w", err)
	}

	var bound, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, post := range posts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			threadID, err := j.provisioner.Ensure(gctx, post)
			if err != nil {
				failed.Add(1)
				j.record("failed")
				j.logger.Warn("backfill_post_failed", "post_id", post.ID, "error", err.Error())
				return nil
			}
			bound.Add(1)
			j.record("bound")
			j.logger.Debug("backfill_post_bound", "post_id", post.ID, "thread_id", threadID)
			return nil
		})
	}
	waitErr := g.Wait()

	result := Result{Visited: len(posts), Bound: int(bound.Load()), Failed: int(failed.Load())}
	j.logger.Info("backfill_run_complete",
		"visited", result.Visited,
		"bound", result.Bound,
		"failed", result.Failed,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	if waitErr != nil {
		return result, fmt.Errorf("backfill: %w", waitErr)
	}
	return result, nil
}

func (j *Job) record(result string) {
	if j.recorder != nil {
		j.recorder.BackfillResult(result)
	}
}
