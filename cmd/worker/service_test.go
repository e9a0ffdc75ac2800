package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls++
	return f.err
}

type fakeQueue struct {
	fakePinger
}

func (f *fakeQueue) Receive(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return nil
}

func (f *fakeQueue) Close() error { return nil }

type fakeRunner struct {
	err error
}

func (f *fakeRunner) Run(ctx context.Context, consumer queue.Consumer) error {
	if f.err != nil {
		return f.err
	}
	return consumer.Receive(ctx, func(context.Context, *queue.Delivery) {})
}

func newTestService(t *testing.T, params ServiceParams) *Service {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
	service, err := NewService(params)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func TestRunStopsOnCancel(t *testing.T) {
	db := &fakePinger{}
	q := &fakeQueue{}
	service := newTestService(t, ServiceParams{DB: db, Queue: q, Worker: &fakeRunner{}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := service.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if db.calls != 1 || q.calls != 1 {
		t.Fatalf("expected readiness pings, got db=%d queue=%d", db.calls, q.calls)
	}
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	redis := &fakePinger{err: errors.New("connection refused")}
	service := newTestService(t, ServiceParams{
		DB:     &fakePinger{},
		Redis:  redis,
		Queue:  &fakeQueue{},
		Worker: &fakeRunner{},
	})

	if err := service.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
	if redis.calls != 1 {
		t.Fatalf("expected redis ping")
	}
}

func TestRunSurfacesConsumerFailure(t *testing.T) {
	boom := errors.New("subscription deleted")
	service := newTestService(t, ServiceParams{
		DB:     &fakePinger{},
		Queue:  &fakeQueue{},
		Worker: &fakeRunner{err: boom},
	})

	if err := service.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestNewServiceRequiresQueue(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{Output: io.Discard}),
		DB:     &fakePinger{},
		Worker: &fakeRunner{},
	})
	if err == nil {
		t.Fatalf("expected error without queue")
	}
}
