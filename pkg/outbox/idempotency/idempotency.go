package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/redis"
)

// Manager hands out in-flight leases per idempotency key using SETNX with a
// TTL. On redis keys follow the `uo:lease:inflight:<consumer>:<key>`
// pattern. A lease only suppresses concurrent processing of the same request;
// durable deduplication lives in the database.
type Manager struct {
	store redis.LeaseStore
	ttl   time.Duration
}

// Lease is held by exactly one processor until it is released or expires.
type Lease struct {
	key   string
	token string
	store redis.LeaseStore
}

// NewManager builds a lease manager whose leases expire after ttl.
func NewManager(store redis.LeaseStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Acquire tries to take the lease for idempotencyKey. The boolean is false
// when another processor already holds it.
func (m *Manager) Acquire(ctx context.Context, consumer, idempotencyKey string) (*Lease, bool, error) {
	key, err := m.inflightKey(consumer, idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	token := uuid.NewString()
	set, err := m.store.SetNX(ctx, key, token, m.ttl)
	if err != nil {
		return nil, false, err
	}
	if !set {
		return nil, false, nil
	}
	return &Lease{key: key, token: token, store: m.store}, true, nil
}

// Release drops the lease if it is still ours. Releasing a nil lease is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	_, err := l.store.DelIfValue(ctx, l.key, l.token)
	return err
}

// Key returns the namespaced store key backing the lease.
func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

func (m *Manager) inflightKey(consumer, idempotencyKey string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return "", errors.New("idempotency key is required")
	}
	scope := fmt.Sprintf("inflight:%s", consumer)
	return m.store.LeaseKey(scope, idempotencyKey), nil
}
