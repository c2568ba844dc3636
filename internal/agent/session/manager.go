// Package session serializes turns per session key.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	logx "github.com/appliance-router/server/pkg/logger"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// Locker is a lock shared across processes, e.g. RedisLocker.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// lockEntry is a one-slot semaphore plus the number of callers holding or waiting on it.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager hands out per-key locks. Entries are reference counted and dropped
// once nobody holds or waits on them, so idle keys cost nothing.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  Locker
	lockTTL time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker adds a distributed lock on top of the in-process one.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		m.lockTTL = ttl
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Active returns the number of keys currently held or waited on.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock runs fn while holding the lock for key. Waiting for the lock stops
// when ctx is done.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	defer m.release(key)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for session lock: %w", ctx.Err())
	}
	defer func() { <-entry.sem }()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// release even if the turn context is already cancelled
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logx.Warn().Err(err).Str("session_key", key).Msg("failed to release distributed lock, it will expire via TTL")
			}
		}()
	}

	return fn(ctx)
}
