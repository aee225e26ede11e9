package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State tracks trigger execution.
type State struct {
	LastRunAt time.Time `json:"lastRunAt,omitempty"`
	NextRunAt time.Time `json:"nextRunAt,omitempty"`
	RunCount  int64     `json:"runCount"`
}

// Runner fires a callback on the configured schedule. The callback is the
// queue's sync entry point; a pass already in progress makes the extra fire
// a no-op, so overlapping fires are harmless.
type Runner struct {
	schedule *Schedule
	fire     func(ctx context.Context)
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu    sync.Mutex
	state State
}

// NewRunner creates a runner for the given schedule. The schedule must have
// been validated.
func NewRunner(schedule *Schedule, fire func(ctx context.Context), logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		schedule: schedule,
		fire:     fire,
		logger:   logger.With("component", "scheduler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the trigger loop until Stop is called or ctx is cancelled.
// Blocks; run it in a goroutine.
func (r *Runner) Start(ctx context.Context) {
	defer close(r.doneCh)

	nextRun, err := r.schedule.NextRun(time.Now())
	if err != nil {
		r.logger.Error("failed to calculate next run", "error", err)
		return
	}
	r.setNextRun(nextRun)

	r.logger.Info("sync trigger started",
		"kind", r.schedule.Kind,
		"next_run", nextRun.Format(time.RFC3339))

	// Interval schedules tick at their own period; cron schedules are
	// checked once a minute against the precomputed next run.
	tickEvery := time.Minute
	if r.schedule.Kind == "interval" {
		tickEvery = time.Duration(r.schedule.IntervalMs) * time.Millisecond
	}

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sync trigger stopped", "reason", "context cancelled")
			return
		case <-r.stopCh:
			r.logger.Info("sync trigger stopped")
			return
		case now := <-ticker.C:
			if r.schedule.Kind == "cron" && now.Before(r.nextRun()) {
				continue
			}
			r.runOnce(ctx)
		}
	}
}

// Stop halts the loop and waits for it to exit.
func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// State returns a snapshot of the trigger's execution state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) runOnce(ctx context.Context) {
	r.logger.Debug("scheduled sync firing")
	r.fire(ctx)

	now := time.Now()
	nextRun, err := r.schedule.NextRun(now)
	if err != nil {
		r.logger.Error("failed to calculate next run", "error", err)
		return
	}

	r.mu.Lock()
	r.state.LastRunAt = now
	r.state.NextRunAt = nextRun
	r.state.RunCount++
	r.mu.Unlock()
}

func (r *Runner) setNextRun(t time.Time) {
	r.mu.Lock()
	r.state.NextRunAt = t
	r.mu.Unlock()
}

func (r *Runner) nextRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.NextRunAt
}
