package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger        *logger.Logger
	Redis         pinger
	PubSub        pinger
	BigQuery      pinger
	Notifications runner
	Analytics     runner
}

// Service runs the Pub/Sub consumers side by side until one fails or the
// context ends.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	consumers map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notification consumer is required")
	}
	s := &Service{
		logg:      params.Logger,
		deps:      map[string]pinger{"redis": params.Redis, "pubsub": params.PubSub},
		consumers: map[string]runner{"notifications": params.Notifications},
	}
	if params.Analytics != nil {
		s.consumers["analytics"] = params.Analytics
	}
	if params.BigQuery != nil {
		s.deps["bigquery"] = params.BigQuery
	}
	return s, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for name, consumer := range s.consumers {
		group.Go(func() error {
			logCtx := s.logg.WithField(groupCtx, "consumer", name)
			s.logg.Info(logCtx, "consumer started")
			if err := consumer.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(logCtx, "consumer stopped unexpectedly", err)
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
