package main

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/pubsubqueue"
)

type topicPublishers interface {
	Publisher(topic string) *gcppubsub.Publisher
}

// topicSink publishes to Pub/Sub topics, opening one publisher per topic on
// first use.
type topicSink struct {
	client topicPublishers

	mu   sync.Mutex
	pubs map[string]queue.Publisher
}

func newTopicSink(client topicPublishers) *topicSink {
	return &topicSink{client: client, pubs: make(map[string]queue.Publisher)}
}

func (s *topicSink) Publish(ctx context.Context, topic string, msg queue.Message) error {
	pub, err := s.publisher(topic)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, msg)
}

func (s *topicSink) publisher(topic string) (queue.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.pubs[topic]; ok {
		return pub, nil
	}
	pub, err := pubsubqueue.NewPublisher(s.client.Publisher(topic))
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic, err)
	}
	s.pubs[topic] = pub
	return pub, nil
}
