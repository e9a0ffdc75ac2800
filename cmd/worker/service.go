package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/pubsub"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/pubsubqueue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/rabbitqueue"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type requestQueue interface {
	queue.Consumer
	pinger
	Close() error
}

type fulfillmentRunner interface {
	Run(ctx context.Context, consumer queue.Consumer) error
}

type ServiceParams struct {
	Logger *logger.Logger
	DB     pinger
	// Redis is nil when the in-flight lease is disabled.
	Redis  pinger
	Queue  requestQueue
	Worker fulfillmentRunner
}

// Service runs the fulfillment worker pool against the configured queue.
type Service struct {
	logg   *logger.Logger
	db     pinger
	redis  pinger
	queue  requestQueue
	worker fulfillmentRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Queue == nil {
		return nil, errors.New("request queue is required")
	}
	if params.Worker == nil {
		return nil, errors.New("fulfillment worker is required")
	}
	return &Service{
		logg:   params.Logger,
		db:     params.DB,
		redis:  params.Redis,
		queue:  params.Queue,
		worker: params.Worker,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if s.redis != nil {
		if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
			return err
		}
	}
	if err := pingDependency(ctx, s.logg, "queue", s.queue.Ping); err != nil {
		return err
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
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.worker.Run(ctx, s.queue)
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			<-errCh
			return ctx.Err()
		case err := <-errCh:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				s.logg.Error(ctx, "fulfillment consumer stopped unexpectedly", err)
				return err
			}
			return errors.New("fulfillment consumer stopped")
		case <-ticker.C:
			s.logg.Debug(ctx, "worker heartbeat")
		}
	}
}

// openQueue connects the consumer side of the configured queue driver.
func openQueue(ctx context.Context, cfg *config.Config, logg *logger.Logger) (requestQueue, error) {
	switch cfg.Queue.DriverName() {
	case config.QueueDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.OrderRequestsSubscriber(cfg.PubSub))
		if err != nil {
			return nil, err
		}
		consumer, err := pubsubqueue.NewConsumer(client.OrdersSubscription(), cfg.Queue.Concurrency)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &pubsubQueue{Consumer: consumer, client: client}, nil
	case config.QueueDriverRabbitMQ:
		return rabbitqueue.Dial(cfg.RabbitMQ, cfg.Queue.Concurrency)
	case config.QueueDriverMemory:
		return nil, errors.New("memory queue driver runs the worker inside cmd/api")
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Queue.Driver)
	}
}

type pubsubQueue struct {
	*pubsubqueue.Consumer
	client *pubsub.Client
}

func (q *pubsubQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx)
}

func (q *pubsubQueue) Close() error {
	return q.client.Close()
}
