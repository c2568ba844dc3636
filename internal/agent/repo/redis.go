package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appliance-router/server/internal/agent/model"
	errx "github.com/appliance-router/server/internal/core/error"
	logx "github.com/appliance-router/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps sessions as JSON documents with a TTL refreshed on every save.
type RedisSessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionStore(rdb redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionStore) sessionKey(key string) string {
	return fmt.Sprintf("conversation:%s:session", key)
}

func (r *RedisSessionStore) load(ctx context.Context, key string) (*model.Session, error) {
	k := r.sessionKey(key)
	raw, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}

	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to unmarshal session")
		return nil, fmt.Errorf("unmarshal session %q: %w", key, err)
	}
	return &s, nil
}

func (r *RedisSessionStore) GetOrCreate(ctx context.Context, key string) (*model.Session, error) {
	s, err := r.load(ctx, key)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, model.ErrSessionNotFound) {
		return nil, err
	}

	s = model.NewSession(key)
	// persist immediately to reserve the key
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(session)
	if err != nil {
		logx.Error().Err(err).Str("session_key", session.Key).Msg("failed to marshal session")
		return fmt.Errorf("marshal session: %w", err)
	}
	k := r.sessionKey(session.Key)

	// ttl 0 keeps the key forever
	if err := r.rdb.Set(ctx, k, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to save session to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionStore) Reset(ctx context.Context, key string) error {
	s, err := r.load(ctx, key)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			return err
		}
		s = model.NewSession(key)
	}
	s.Reset()
	return r.Save(ctx, s)
}

var _ model.SessionStore = (*RedisSessionStore)(nil)
