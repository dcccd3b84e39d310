package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// RedisStore keeps hand-offs in Redis with an expiry, so abandoned
// payments clean themselves up.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore constructs a RedisStore. A non-positive ttl uses DefaultTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "regform:handoff:"}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Save(ctx context.Context, h *model.HandoffState) error {
	b, err := model.EncodeHandoff(h)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(h.SessionID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save handoff: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*model.HandoffState, error) {
	b, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNoHandoff
		}
		return nil, fmt.Errorf("load handoff: %w", err)
	}
	return model.DecodeHandoff(b)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete handoff: %w", err)
	}
	return nil
}
