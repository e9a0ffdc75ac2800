// Package memqueue is a channel-backed at-least-once queue for local runs and
// tests. Nacked messages are put back with their attempt count increased.
package memqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

var ErrClosed = errors.New("memqueue: closed")

type envelope struct {
	msg     queue.Message
	attempt int
}

type Queue struct {
	ch          chan envelope
	concurrency int

	outstanding atomic.Int64
	delivered   atomic.Int64
	closeOnce   sync.Once
	done        chan struct{}
}

// New builds a queue holding up to bufferSize pending messages, drained by
// concurrency goroutines per Receive call.
func New(bufferSize, concurrency int) *Queue {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Queue{
		ch:          make(chan envelope, bufferSize),
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Publish enqueues msg, blocking while the buffer is full.
func (q *Queue) Publish(ctx context.Context, msg queue.Message) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	q.outstanding.Add(1)
	select {
	case q.ch <- envelope{msg: msg, attempt: 1}:
		return nil
	case <-q.done:
		q.outstanding.Add(-1)
		return ErrClosed
	case <-ctx.Done():
		q.outstanding.Add(-1)
		return ctx.Err()
	}
}

// Receive runs the handler on up to concurrency messages at once until ctx
// is done or the queue is closed.
func (q *Queue) Receive(ctx context.Context, h queue.Handler) error {
	if h == nil {
		return errors.New("memqueue: handler is required")
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-q.done:
					return nil
				case env := <-q.ch:
					q.delivered.Add(1)
					h(gctx, q.delivery(env))
				}
			}
		})
	}
	return g.Wait()
}

func (q *Queue) delivery(env envelope) *queue.Delivery {
	return queue.NewDelivery(env.msg, env.attempt,
		func() { q.outstanding.Add(-1) },
		func() { q.requeue(envelope{msg: env.msg, attempt: env.attempt + 1}) },
	)
}

// requeue never blocks the calling worker; a full buffer would otherwise
// deadlock every worker on its own nack.
func (q *Queue) requeue(env envelope) {
	select {
	case q.ch <- env:
		return
	default:
	}
	go func() {
		select {
		case q.ch <- env:
		case <-q.done:
		}
	}()
}

// Outstanding counts published messages that have not been acked yet.
func (q *Queue) Outstanding() int64 {
	return q.outstanding.Load()
}

// Delivered counts handler invocations, redeliveries included.
func (q *Queue) Delivered() int64 {
	return q.delivered.Load()
}

// WaitIdle blocks until every published message has been acked.
func (q *Queue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.outstanding.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) Ping(context.Context) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
		return nil
	}
}

// Close stops receivers and rejects further publishes.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
