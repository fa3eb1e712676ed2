package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Func is one run of a periodic job.
type Func func(ctx context.Context) error

// Job is a named function run every Interval.
type Job struct {
	Type     string
	Interval time.Duration
	Run      Func
}

// Runner runs jobs on their intervals until stopped. Each job runs once
// immediately on Start.
type Runner struct {
	jobs    []Job
	metrics *Metrics
	logger  *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(logger *slog.Logger, metrics *Metrics, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		jobs:    jobs,
		metrics: metrics,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Start launches one goroutine per job.
func (r *Runner) Start(ctx context.Context) {
	for _, j := range r.jobs {
		if j.Interval <= 0 || j.Run == nil {
			r.logger.Warn("skipping background job without interval or func", "job_type", j.Type)
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
}

// Stop signals every job to exit and waits for in-flight runs.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, j Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	r.logger.Info("background job started", "job_type", j.Type, "interval", j.Interval)
	r.runOnce(ctx, j)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("background job stopping due to context cancellation", "job_type", j.Type)
			return
		case <-r.stop:
			r.logger.Info("background job stopping", "job_type", j.Type)
			return
		case <-ticker.C:
			r.runOnce(ctx, j)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, j Job) {
	start := time.Now()
	err := j.Run(ctx)
	r.metrics.ObserveJobDuration(j.Type, time.Since(start).Seconds())

	if err != nil {
		r.metrics.IncJobsTotal(j.Type, StatusFailure)
		r.metrics.IncJobErrors(j.Type, errorType(err))
		r.logger.Error("background job failed", "job_type", j.Type, "error", err)
		return
	}
	r.metrics.IncJobsTotal(j.Type, StatusSuccess)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
