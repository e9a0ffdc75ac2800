// Package queue abstracts the at-least-once work queue that carries order
// requests to the fulfillment workers.
package queue

import (
	"context"
	"sync"
)

// Message is the broker-neutral payload.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Delivery is one attempt at handing a Message to a handler. Exactly one of
// Ack or Nack takes effect; later calls are ignored.
type Delivery struct {
	Message
	Attempt int

	once sync.Once
	ack  func()
	nack func()
}

// NewDelivery wires broker callbacks into a Delivery.
func NewDelivery(msg Message, attempt int, ack, nack func()) *Delivery {
	if attempt < 1 {
		attempt = 1
	}
	return &Delivery{Message: msg, Attempt: attempt, ack: ack, nack: nack}
}

// Ack marks the message done; it will not be redelivered.
func (d *Delivery) Ack() {
	d.once.Do(func() {
		if d.ack != nil {
			d.ack()
		}
	})
}

// Nack returns the message to the queue for a later attempt.
func (d *Delivery) Nack() {
	d.once.Do(func() {
		if d.nack != nil {
			d.nack()
		}
	})
}

// Handler processes a delivery and must Ack or Nack it.
type Handler func(ctx context.Context, d *Delivery)

// Consumer pulls deliveries and invokes the handler concurrently. Receive
// blocks until ctx is done or the broker fails.
type Consumer interface {
	Receive(ctx context.Context, h Handler) error
}

// Publisher enqueues messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
