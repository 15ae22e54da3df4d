package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

const nextTickRetry = 30 * time.Second

type runner interface {
	RunOnce(ctx context.Context) (Result, error)
}

// Scheduler runs a job on every tick of a cron expression. Ticks that arrive
// while a run is still in progress are skipped.
type Scheduler struct {
	job    runner
	cron   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

func NewScheduler(job runner, cron string, logger *slog.Logger) (*Scheduler, error) {
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid backfill cron expression: %q", cron)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{job: job, cron: cron, logger: logger, now: time.Now}, nil
}

// Start launches the schedule loop and returns a func that stops it and
// waits for the loop and any in-flight run to exit.
func (s *Scheduler) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.logger.Info("backfill_enabled", "cron", s.cron)
	go func() {
		defer close(done)
		s.loop(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	var runs sync.WaitGroup
	defer runs.Wait()

	for {
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			s.logger.Error("backfill_nexttick_failed", "cron", s.cron, "error", err)
			if !sleep(ctx, nextTickRetry) {
				return
			}
			continue
		}

		if !sleep(ctx, next.Sub(s.now())) {
			return
		}
		if !s.runJob(ctx, &runs) {
			s.logger.Info("backfill_tick_skipped", "reason", "previous run in progress")
		}
	}
}

// runJob starts a run in the background and reports false when the previous
// run has not finished yet.
func (s *Scheduler) runJob(ctx context.Context, runs *sync.WaitGroup) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.mu.Unlock()

	runs.Add(1)
	go func() {
		defer runs.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		if _, err := s.job.RunOnce(ctx); err != nil {
			s.logger.Error("backfill_run_error", "error", err)
		}
	}()
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
