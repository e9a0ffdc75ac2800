package fulfillment

import (
	"context"
	"errors"

	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/tracing"
)

// Handle settles one delivery. Malformed bodies are acked since they cannot
// succeed on redelivery; Failed results are nacked.
func (w *Worker) Handle(ctx context.Context, d *queue.Delivery) {
	ctx = tracing.Extract(ctx, d.Attributes)
	ctx = w.logg.WithFields(ctx, map[string]any{
		"message_id": d.ID,
		"attempt":    d.Attempt,
	})

	req, err := DecodeRequest(d.Data)
	if err != nil {
		w.logg.Error(ctx, "dropping malformed order request", err)
		d.Ack()
		return
	}

	if _, err := w.Process(ctx, req); err != nil {
		d.Nack()
		return
	}
	d.Ack()
}

// Run consumes deliveries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, consumer queue.Consumer) error {
	w.logg.Info(ctx, "fulfillment worker started")
	err := consumer.Receive(ctx, w.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logg.Error(ctx, "fulfillment worker stopped", err)
		return err
	}
	w.logg.Info(ctx, "fulfillment worker stopped")
	return nil
}
