package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/pubsub"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/memqueue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/pubsubqueue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/rabbitqueue"
)

// requestQueue is the producer side of the order request queue.
type requestQueue interface {
	queue.Publisher
	Ping(context.Context) error
	Close() error
}

// openQueue connects the publisher for the configured queue driver.
func openQueue(ctx context.Context, cfg *config.Config, logg *logger.Logger) (requestQueue, error) {
	switch cfg.Queue.DriverName() {
	case config.QueueDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.OrderRequestsPublisher(cfg.PubSub))
		if err != nil {
			return nil, err
		}
		publisher, err := pubsubqueue.NewPublisher(client.OrdersPublisher())
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &pubsubQueue{Publisher: publisher, client: client}, nil
	case config.QueueDriverRabbitMQ:
		return rabbitqueue.Dial(cfg.RabbitMQ, cfg.Queue.Concurrency)
	case config.QueueDriverMemory:
		return &localQueue{Queue: memqueue.New(cfg.Queue.BufferSize, cfg.Queue.Concurrency)}, nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Queue.Driver)
	}
}

type pubsubQueue struct {
	*pubsubqueue.Publisher
	client *pubsub.Client
}

func (q *pubsubQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx)
}

func (q *pubsubQueue) Close() error {
	return q.client.Close()
}

// localQueue marks the in-process queue so the API also runs the consumer.
type localQueue struct {
	*memqueue.Queue
}
