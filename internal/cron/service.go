package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/metrics"
)

const (
	defaultInterval = 24 * time.Hour
	// maxParallelJobs keeps housekeeping from taking more than a couple of
	// pool connections away from the API.
	maxParallelJobs = 2
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval. Only the replica that
// wins the lock runs a given cycle.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{logg: p.Logger, jobs: p.Registry, lock: p.Lock, metrics: p.Metrics, interval: p.Interval}
	if s.jobs == nil {
		s.jobs = &Registry{byName: map[string]Job{}}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle right away and then on every tick until ctx ends.
// Cycle failures are logged; only cancellation stops the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "housekeeping cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job a single time under the lock. Jobs are independent:
// all of them run and their errors come back combined.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "housekeeping lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release housekeeping lock", err)
		}
	}()

	var (
		mu     sync.Mutex
		failed error
		g      errgroup.Group
	)
	g.SetLimit(maxParallelJobs)
	for _, job := range s.jobs.Jobs() {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.runJob(ctx, job); err != nil {
				mu.Lock()
				failed = multierr.Append(failed, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Append(failed, ctx.Err())
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	start := time.Now()
	result, err := job.Run(ctx)
	took := time.Since(start)
	s.metrics.Observe(name, took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.metrics.AddPurged(name, result.Purged)
	s.logg.Info(s.logg.WithField(ctx, "purged", result.Purged), "job completed")
	return nil
}
