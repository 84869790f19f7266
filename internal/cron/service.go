package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/metrics"
)

const defaultInterval = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Claims   Claims
	Metrics  *metrics.CronJobMetrics
	Clock    calendar.Clock
	Interval time.Duration
}

// Service checks the registry on a fixed cadence and runs every job whose
// time of day has been reached and that has not run yet today.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	claims   Claims
	metrics  *metrics.CronJobMetrics
	clock    calendar.Clock
	interval time.Duration
	done     map[string]string
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Claims == nil {
		return nil, fmt.Errorf("claims required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		claims:   params.Claims,
		metrics:  params.Metrics,
		clock:    params.Clock,
		interval: interval,
		done:     map[string]string{},
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runCycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	now := s.clock.LocalNow()
	day := s.clock.Today().String()
	for _, job := range s.registry.Jobs() {
		if !job.At().reached(now) || s.done[job.Name()] == day {
			continue
		}
		s.runDue(ctx, job, day)
	}
}

func (s *Service) runDue(ctx context.Context, job Job, day string) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
		"day":   day,
	})
	claimed, err := s.claims.Claim(ctx, job.Name(), day)
	if err != nil {
		s.logg.Error(jobCtx, "claim failed", err)
		return
	}
	if !claimed {
		s.done[job.Name()] = day
		s.logg.Info(jobCtx, "job already ran today; skipping")
		return
	}

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	affected, err := job.Run(jobCtx)
	duration := time.Since(start)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"affected":    affected,
	})
	s.metrics.ObserveRun(job.Name(), duration, affected, err)
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		if relErr := s.claims.Release(ctx, job.Name(), day); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron claim", relErr)
		}
		return
	}
	s.done[job.Name()] = day
	s.logg.Info(jobCtx, "job completed")
}
