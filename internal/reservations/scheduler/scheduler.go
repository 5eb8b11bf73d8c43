package scheduler

import (
	"context"
	"errors"
	"fmt"
	"roombook/pkg/config"
	"roombook/pkg/logger"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one periodic sweep. Run reports how many rows it moved.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

type sweeper interface {
	RejectImminent(ctx context.Context) (int, error)
	RejectExpired(ctx context.Context) (int, error)
	CompleteElapsed(ctx context.Context) (int, error)
	RejectDuplicates(ctx context.Context) (int, error)
}

type Scheduler struct {
	jobs       []Job
	runTimeout time.Duration
	logger     *logger.Logger
}

func New(jobs []Job, runTimeout time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		jobs:       jobs,
		runTimeout: runTimeout,
		logger:     log,
	}
}

// SweepJobs maps the sweeper passes onto their configured intervals.
func SweepJobs(s sweeper, cfg *config.Config) []Job {
	return []Job{
		{Name: "imminent", Interval: cfg.SweepImminentInterval, Run: s.RejectImminent},
		{Name: "expired", Interval: cfg.SweepExpiredInterval, Run: s.RejectExpired},
		{Name: "completion", Interval: cfg.SweepCompletionInterval, Run: s.CompleteElapsed},
		{Name: "duplicates", Interval: cfg.SweepDuplicateInterval, Run: s.RejectDuplicates},
	}
}

// Start runs the jobs until ctx is cancelled and logs why they stopped.
func (s *Scheduler) Start(ctx context.Context) {
	err := s.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduler stopped", "error", err)
		return
	}
	s.logger.Info("scheduler stopped")
}

// Run runs every job on its own ticker. A job never overlaps with itself: the
// next tick waits for the current run to return. Run returns the first error
// that ends a job loop; the other loops are stopped with it. Cancellation of
// ctx ends every loop with ctx's error.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			return s.loop(ctx, job)
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("sweep %s: interval must be positive, got %s", job.Name, job.Interval)
	}
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("sweep started",
		"job", job.Name,
		"interval", job.Interval,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	started := time.Now()
	n, err := job.Run(runCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sweep failed",
			"job", job.Name,
			"processed", n,
			"error", err,
		)
		return
	}
	if n > 0 {
		s.logger.Info("sweep processed reservations",
			"job", job.Name,
			"processed", n,
			"duration", time.Since(started),
		)
	}
}
