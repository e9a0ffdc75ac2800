// Package pubsubqueue adapts Cloud Pub/Sub v2 subscribers and publishers to
// the queue interfaces.
package pubsubqueue

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

type Consumer struct {
	sub         *gcppubsub.Subscriber
	concurrency int
}

// NewConsumer wraps sub; concurrency bounds the messages handled at once.
func NewConsumer(sub *gcppubsub.Subscriber, concurrency int) (*Consumer, error) {
	if sub == nil {
		return nil, errors.New("pubsub subscriber is required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{sub: sub, concurrency: concurrency}, nil
}

func (c *Consumer) Receive(ctx context.Context, h queue.Handler) error {
	if h == nil {
		return errors.New("pubsubqueue: handler is required")
	}
	c.sub.ReceiveSettings.MaxOutstandingMessages = c.concurrency
	return c.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		h(ctx, toDelivery(msg))
	})
}

func toDelivery(msg *gcppubsub.Message) *queue.Delivery {
	return queue.NewDelivery(
		queue.Message{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes},
		deliveryAttempt(msg),
		msg.Ack,
		msg.Nack,
	)
}

// deliveryAttempt is only populated when the subscription has a dead letter
// policy; without one every delivery reports attempt 1.
func deliveryAttempt(msg *gcppubsub.Message) int {
	if msg.DeliveryAttempt == nil {
		return 1
	}
	return *msg.DeliveryAttempt
}

type resultGetter interface {
	Get(ctx context.Context) (string, error)
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) resultGetter
}

type Publisher struct {
	pub topicPublisher
}

func NewPublisher(pub *gcppubsub.Publisher) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return &Publisher{pub: gcpTopic{pub}}, nil
}

// Publish blocks until the server acknowledged the message.
func (p *Publisher) Publish(ctx context.Context, msg queue.Message) error {
	result := p.pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	_, err := result.Get(ctx)
	return err
}

type gcpTopic struct {
	*gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) resultGetter {
	return t.Publisher.Publish(ctx, msg)
}
