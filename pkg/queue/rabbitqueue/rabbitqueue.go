// Package rabbitqueue adapts a durable RabbitMQ queue with manual
// acknowledgements to the queue interfaces.
package rabbitqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

const deliveryCountHeader = "x-delivery-count"

type Queue struct {
	conn        *amqp.Connection
	name        string
	prefetch    int
	concurrency int

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

// Dial connects, declares the durable queue and opens the publishing channel.
func Dial(cfg config.RabbitMQConfig, concurrency int) (*Queue, error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, errors.New("rabbitmq url and queue are required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.Prefetch
	if prefetch < concurrency {
		prefetch = concurrency
	}
	return &Queue{
		conn:        conn,
		name:        cfg.Queue,
		prefetch:    prefetch,
		concurrency: concurrency,
		pubCh:       ch,
	}, nil
}

// Publish sends a persistent message. Channels are not safe for concurrent
// publishing, so calls are serialized.
func (q *Queue) Publish(ctx context.Context, msg queue.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err := q.pubCh.PublishWithContext(ctx,
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Headers:      toHeaders(msg.Attributes),
			Body:         msg.Data,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Receive consumes on a dedicated channel with prefetch and dispatches to
// concurrency handlers. Nack requeues the message.
func (q *Queue) Receive(ctx context.Context, h queue.Handler) error {
	if h == nil {
		return errors.New("rabbitqueue: handler is required")
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	tag := "uporders-" + uuid.NewString()
	deliveries, err := ch.ConsumeWithContext(ctx,
		q.name,
		tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume messages: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case d, ok := <-deliveries:
					if !ok {
						if gctx.Err() != nil {
							return nil
						}
						return errors.New("rabbitmq delivery channel closed")
					}
					h(gctx, toDelivery(d))
				}
			}
		})
	}
	err = g.Wait()
	_ = ch.Cancel(tag, false)
	return err
}

func toDelivery(d amqp.Delivery) *queue.Delivery {
	return queue.NewDelivery(
		queue.Message{ID: d.MessageId, Data: d.Body, Attributes: fromHeaders(d.Headers)},
		deliveryAttempt(d),
		func() { _ = d.Ack(false) },
		func() { _ = d.Nack(false, true) },
	)
}

// deliveryAttempt reads the quorum queue delivery counter when present and
// otherwise only distinguishes first delivery from redelivery.
func deliveryAttempt(d amqp.Delivery) int {
	switch v := d.Headers[deliveryCountHeader].(type) {
	case int64:
		return int(v) + 1
	case int32:
		return int(v) + 1
	case int:
		return v + 1
	}
	if d.Redelivered {
		return 2
	}
	return 1
}

func toHeaders(attrs map[string]string) amqp.Table {
	if len(attrs) == 0 {
		return nil
	}
	table := amqp.Table{}
	for k, v := range attrs {
		table[k] = v
	}
	return table
}

func fromHeaders(headers amqp.Table) map[string]string {
	attrs := map[string]string{}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			attrs[k] = s
		}
	}
	return attrs
}

func (q *Queue) Ping(context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (q *Queue) Close() error {
	if q.pubCh != nil {
		_ = q.pubCh.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
