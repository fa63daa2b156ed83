package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/laggedout/storefront-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	DB           pinger
	Redis        pinger
	PubSub       pinger
	Notification runner
}

// Service checks its dependencies once and then drives the notification consumer.
type Service struct {
	logg         *logger.Logger
	deps         map[string]pinger
	order        []string
	notification runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Notification == nil {
		return nil, errors.New("notification consumer is required")
	}

	return &Service{
		logg: params.Logger,
		deps: map[string]pinger{
			"database": params.DB,
			"redis":    params.Redis,
			"pubsub":   params.PubSub,
		},
		order:        []string{"database", "redis", "pubsub"},
		notification: params.Notification,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, name := range s.order {
		if err := pingDependency(ctx, s.logg, name, s.deps[name].Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	err := s.notification.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return err
}
