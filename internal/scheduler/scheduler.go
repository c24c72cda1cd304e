// Package scheduler runs the dealer cycle on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atmx/dealer/internal/metrics"
)

// Job is one cycle.
type Job func(ctx context.Context) error

// Scheduler runs a job immediately and then on every tick. A cycle runs
// only while holding the lease; a tick that cannot take it is skipped.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	lease    Lease
}

// New creates a scheduler. A nil lease means a process-local one.
func New(name string, interval time.Duration, lease Lease, job Job) *Scheduler {
	if lease == nil {
		lease = NewLocalLease()
	}
	return &Scheduler{name: name, interval: interval, job: job, lease: lease}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "job", s.name, "interval", s.interval.String())

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped", "job", s.name)
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single cycle under the lease. It reports whether the
// job ran.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	release, ok, err := s.lease.Acquire(ctx)
	if err != nil {
		slog.Warn("lease acquire failed, skipping tick", "job", s.name, "err", err)
		metrics.SkippedTicks.WithLabelValues("lease_error").Inc()
		return false
	}
	if !ok {
		slog.Info("lease held elsewhere, skipping tick", "job", s.name)
		metrics.SkippedTicks.WithLabelValues("lease_held").Inc()
		return false
	}
	defer release()

	start := time.Now()
	err = s.safeRun(ctx)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("cycle failed", "job", s.name, "err", err, "elapsed", time.Since(start).String())
	}
	return true
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CycleErrors.WithLabelValues("panic").Inc()
			err = fmt.Errorf("panic in cycle: %v", r)
		}
	}()
	return s.job(ctx)
}
