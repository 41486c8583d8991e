package middleware

import (
	"context"
	"encoding/json"
	"time"

	"slotbook/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore shares idempotency state across instances.
type RedisIdempotencyStore struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
	log     *logger.Logger
}

func NewRedisIdempotencyStore(rdb *redis.Client, prefix string, ttl, lockTTL time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		rdb:     rdb,
		prefix:  prefix + ":idem:",
		ttl:     ttl,
		lockTTL: lockTTL,
		log:     log,
	}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("Failed to read idempotency record", "error", err)
		}
		return nil, false
	}

	var response CachedResponse
	if err := json.Unmarshal(data, &response); err != nil {
		s.log.Warn("Discarding corrupt idempotency record", "error", err)
		return nil, false
	}
	return &response, true
}

// Begin fails open when redis is unreachable so the request is still served.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) bool {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key+":lock", 1, s.lockTTL).Result()
	if err != nil {
		s.log.Warn("Failed to claim idempotency key", "error", err)
		return true
	}
	return ok
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, response *CachedResponse) {
	pipe := s.rdb.TxPipeline()
	if response != nil {
		response.CreatedAt = time.Now().UTC()
		if data, err := json.Marshal(response); err == nil {
			pipe.Set(ctx, s.prefix+key, data, s.ttl)
		}
	}
	pipe.Del(ctx, s.prefix+key+":lock")
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("Failed to store idempotency record", "error", err)
	}
}

func (s *RedisIdempotencyStore) Stop() {}
