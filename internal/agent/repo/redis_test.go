package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/appliance-router/server/internal/agent/model"
	errx "github.com/appliance-router/server/internal/core/error"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionStore(rdb, ttl), mr
}

func TestRedisSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 15*time.Minute)

	s, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, mr.Exists("conversation:alice:session"))

	require.NoError(t, s.Bind(model.CategoryRefrigerator))
	require.NoError(t, s.SetIdentifier("WRS325SDHZ"))
	s.AddUserTurn("WRS325SDHZ")
	s.AddAssistantTurn("menu")
	s.LastPresentedMenu = "menu"
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.StageAwaitingHelpIntent, loaded.Stage)
	assert.Equal(t, model.CategoryRefrigerator, loaded.Category)
	assert.Equal(t, "WRS325SDHZ", loaded.Identifier)
	assert.Equal(t, "menu", loaded.LastPresentedMenu)
	require.Len(t, loaded.Turns, 2)
	assert.Equal(t, schema.User, loaded.Turns[0].Role)
	assert.Equal(t, schema.Assistant, loaded.Turns[1].Role)
}

func TestRedisSessionStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)

	s, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Bind(model.CategoryDishwasher))
	require.NoError(t, store.Save(ctx, s))
	assert.Equal(t, time.Minute, mr.TTL("conversation:alice:session"))

	mr.FastForward(2 * time.Minute)

	s, err = store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryNone, s.Category)
}

func TestRedisSessionStore_Reset(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t, time.Minute)

	s, _ := store.GetOrCreate(ctx, "alice")
	require.NoError(t, s.Bind(model.CategoryDishwasher))
	s.AddUserTurn("dishwasher")
	require.NoError(t, store.Save(ctx, s))

	require.NoError(t, store.Reset(ctx, "alice"))
	require.NoError(t, store.Reset(ctx, "alice"))
	require.NoError(t, store.Reset(ctx, "nobody"))

	s, err := store.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.StageAwaitingCategory, s.Stage)
	assert.Empty(t, s.Turns)
}

func TestRedisSessionStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	mr.Close()

	_, err := store.GetOrCreate(ctx, "alice")
	require.Error(t, err)
	assert.Equal(t, 502, errx.StatusOf(err))
}

func TestRedisSessionStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, mr.Set("conversation:alice:session", "{not json"))

	_, err := store.GetOrCreate(ctx, "alice")
	assert.Error(t, err)
}
