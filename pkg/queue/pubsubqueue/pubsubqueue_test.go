package pubsubqueue

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

func TestDeliveryAttempt(t *testing.T) {
	if got := deliveryAttempt(&gcppubsub.Message{}); got != 1 {
		t.Fatalf("expected attempt 1 without dead letter policy, got %d", got)
	}
	five := 5
	if got := deliveryAttempt(&gcppubsub.Message{DeliveryAttempt: &five}); got != 5 {
		t.Fatalf("expected attempt 5, got %d", got)
	}
}

func TestToDeliveryCopiesMessage(t *testing.T) {
	d := toDelivery(&gcppubsub.Message{ID: "m-1", Data: []byte(`{}`), Attributes: map[string]string{"k": "v"}})
	if d.ID != "m-1" || string(d.Data) != "{}" || d.Attributes["k"] != "v" {
		t.Fatalf("unexpected delivery %+v", d.Message)
	}
}

type fakeResult struct{ err error }

func (f fakeResult) Get(context.Context) (string, error) { return "id", f.err }

type fakeTopic struct {
	last *gcppubsub.Message
	err  error
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) resultGetter {
	f.last = msg
	return fakeResult{err: f.err}
}

func TestPublisherPublish(t *testing.T) {
	topic := &fakeTopic{}
	p := &Publisher{pub: topic}
	err := p.Publish(context.Background(), queue.Message{Data: []byte("body"), Attributes: map[string]string{"idempotency_key": "k"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(topic.last.Data) != "body" || topic.last.Attributes["idempotency_key"] != "k" {
		t.Fatalf("unexpected message %+v", topic.last)
	}

	topic.err = errors.New("unavailable")
	if err := p.Publish(context.Background(), queue.Message{}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestConstructorsRequireHandles(t *testing.T) {
	if _, err := NewConsumer(nil, 1); err == nil {
		t.Fatalf("expected error for nil subscriber")
	}
	if _, err := NewPublisher(nil); err == nil {
		t.Fatalf("expected error for nil publisher")
	}
}
