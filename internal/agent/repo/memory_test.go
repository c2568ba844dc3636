package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/appliance-router/server/internal/agent/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemorySessionStore_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)

	s, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Key)
	assert.Equal(t, model.StageAwaitingCategory, s.Stage)
	assert.Empty(t, s.Turns)
	assert.Equal(t, 1, store.Len())
}

func TestMemorySessionStore_SaveIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)

	s, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Bind(model.CategoryDishwasher))
	s.AddUserTurn("hi")
	require.NoError(t, store.Save(ctx, s))

	// mutating the caller copy after save must not leak into the store
	s.AddAssistantTurn("not saved")

	loaded, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryDishwasher, loaded.Category)
	assert.Len(t, loaded.Turns, 1)

	other, err := store.GetOrCreate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryNone, other.Category)
}

func TestMemorySessionStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)

	s, _ := store.GetOrCreate(ctx, "alice")
	require.NoError(t, s.Bind(model.CategoryRefrigerator))
	require.NoError(t, s.SetIdentifier("WDT780SAEM1"))
	s.AddUserTurn("WDT780SAEM1")
	require.NoError(t, store.Save(ctx, s))

	require.NoError(t, store.Reset(ctx, "alice"))
	first, _ := store.GetOrCreate(ctx, "alice")

	require.NoError(t, store.Reset(ctx, "alice"))
	second, _ := store.GetOrCreate(ctx, "alice")

	for _, got := range []*model.Session{first, second} {
		assert.Equal(t, model.StageAwaitingCategory, got.Stage)
		assert.Equal(t, model.CategoryNone, got.Category)
		assert.Empty(t, got.Identifier)
		assert.Empty(t, got.Turns)
	}
}

func TestMemorySessionStore_ResetUnknownKey(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	require.NoError(t, store.Reset(context.Background(), "ghost"))
	assert.Equal(t, 1, store.Len())
}

func TestMemorySessionStore_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemorySessionStore(15*time.Minute, WithClock(clock.Now))

	s, _ := store.GetOrCreate(ctx, "alice")
	require.NoError(t, s.Bind(model.CategoryDishwasher))
	require.NoError(t, store.Save(ctx, s))

	clock.Advance(10 * time.Minute)
	s, _ = store.GetOrCreate(ctx, "alice")
	assert.Equal(t, model.CategoryDishwasher, s.Category, "still within ttl")
	require.NoError(t, store.Save(ctx, s))

	clock.Advance(16 * time.Minute)
	s, _ = store.GetOrCreate(ctx, "alice")
	assert.Equal(t, model.CategoryNone, s.Category, "expired session starts over")
}

func TestMemorySessionStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemorySessionStore(time.Minute, WithClock(clock.Now))

	_, _ = store.GetOrCreate(ctx, "old")
	clock.Advance(2 * time.Minute)
	_, _ = store.GetOrCreate(ctx, "fresh")

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestMemorySessionStore_NoTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := NewMemorySessionStore(0, WithClock(clock.Now))

	_, _ = store.GetOrCreate(ctx, "alice")
	clock.Advance(24 * time.Hour)
	assert.Zero(t, store.Sweep())
}

func TestMemorySessionStore_RunJanitorStopsOnCancel(t *testing.T) {
	store := NewMemorySessionStore(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestMemorySessionStore_ConcurrentKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Minute)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		key := fmt.Sprintf("user-%d", i)
		g.Go(func() error {
			s, err := store.GetOrCreate(ctx, key)
			if err != nil {
				return err
			}
			s.AddUserTurn(key)
			return store.Save(ctx, s)
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 32, store.Len())

	s, err := store.GetOrCreate(ctx, "user-7")
	require.NoError(t, err)
	require.Len(t, s.Turns, 1)
	assert.Equal(t, "user-7", s.Turns[0].Content)
}
