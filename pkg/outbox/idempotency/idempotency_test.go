package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastValue   string
	lastTTL     time.Duration
	released    []string
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastValue, _ = value.(string)
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) LeaseKey(scope, id string) string {
	return "uo:lease:" + scope + ":" + id
}

func (f *fakeStore) DelIfValue(_ context.Context, key, value string) (bool, error) {
	f.released = append(f.released, key+"="+value)
	return true, nil
}

func TestAcquire_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 2*time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	lease, ok, err := manager.Acquire(context.Background(), "fulfillment-worker", "req-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok || lease == nil {
		t.Fatalf("expected lease on first acquire")
	}

	expectedKey := "uo:lease:inflight:fulfillment-worker:req-1"
	if store.lastKey != expectedKey || lease.Key() != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 2*time.Minute {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
	if store.lastValue == "" {
		t.Fatalf("expected an owner token as value")
	}

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(store.released) != 1 || store.released[0] != expectedKey+"="+store.lastValue {
		t.Fatalf("release should compare the owner token, got %v", store.released)
	}
}

func TestAcquire_HeldElsewhere(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	manager, err := NewManager(store, time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	lease, ok, err := manager.Acquire(context.Background(), "fulfillment-worker", "req-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok || lease != nil {
		t.Fatalf("expected lease to be refused")
	}
}

func TestAcquire_Error(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	manager, err := NewManager(store, time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, _, err := manager.Acquire(context.Background(), "fulfillment-worker", "req-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAcquire_Validation(t *testing.T) {
	manager, err := NewManager(&fakeStore{setNXResult: true}, time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, _, err := manager.Acquire(context.Background(), "", "req-1"); err == nil {
		t.Fatal("expected consumer validation error")
	}
	if _, _, err := manager.Acquire(context.Background(), "worker", " "); err == nil {
		t.Fatal("expected key validation error")
	}
	if _, err := NewManager(nil, time.Minute); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := NewManager(&fakeStore{}, 0); err == nil {
		t.Fatal("expected ttl error")
	}
}

func TestNilLeaseRelease(t *testing.T) {
	var lease *Lease
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("nil lease release should be a no-op: %v", err)
	}
}

func TestMemoryStoreLeaseLifecycle(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	manager, err := NewManager(store, time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	first, ok, err := manager.Acquire(ctx, "worker", "req-9")
	if err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(first.Key(), "mem:lease:inflight:worker") {
		t.Fatalf("unexpected key %s", first.Key())
	}
	if _, ok, _ := manager.Acquire(ctx, "worker", "req-9"); ok {
		t.Fatalf("second acquire must fail while lease is held")
	}

	now = now.Add(2 * time.Minute)
	second, ok, err := manager.Acquire(ctx, "worker", "req-9")
	if err != nil || !ok {
		t.Fatalf("acquire after expiry ok=%v err=%v", ok, err)
	}

	// the expired owner must not release the new owner's lease
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := manager.Acquire(ctx, "worker", "req-9"); ok {
		t.Fatalf("stale release dropped the current lease")
	}

	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := manager.Acquire(ctx, "worker", "req-9"); !ok {
		t.Fatalf("expected lease to be free after release")
	}
}
