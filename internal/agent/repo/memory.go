package repo

import (
	"context"
	"sync"
	"time"

	"github.com/appliance-router/server/internal/agent/model"
	logx "github.com/appliance-router/server/pkg/logger"
)

type memoryEntry struct {
	session *model.Session
	touched time.Time
}

// MemorySessionStore keeps sessions in process memory with an idle TTL.
// Expired sessions are dropped lazily on access and by Sweep.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a MemorySessionStore.
type MemoryOption func(*MemorySessionStore)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemorySessionStore) {
		s.now = now
	}
}

// NewMemorySessionStore creates an in-memory store. A ttl <= 0 disables expiry.
func NewMemorySessionStore(ttl time.Duration, opts ...MemoryOption) *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySessionStore) expired(e *memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

func (s *MemorySessionStore) GetOrCreate(ctx context.Context, key string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.sessions[key]; ok {
		if !s.expired(e, now) {
			return e.session.Clone(), nil
		}
		logx.Debug().Str("session_key", key).Msg("session expired, starting a new one")
	}

	sess := model.NewSession(key)
	s.sessions[key] = &memoryEntry{session: sess, touched: now}
	return sess.Clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session.UpdatedAt = now.UTC()
	s.sessions[session.Key] = &memoryEntry{session: session.Clone(), touched: now}
	return nil
}

func (s *MemorySessionStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.sessions[key]
	if !ok {
		s.sessions[key] = &memoryEntry{session: model.NewSession(key), touched: now}
		return nil
	}
	e.session.Reset()
	e.touched = now
	return nil
}

// Sweep drops every session idle for longer than the TTL and returns how many were evicted.
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of sessions currently held, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (s *MemorySessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logx.Debug().Int("evicted", n).Msg("swept expired sessions")
			}
		}
	}
}

var _ model.SessionStore = (*MemorySessionStore)(nil)
