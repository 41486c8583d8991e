package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares availability pages between instances. Page keys embed a
// generation number, and EvictAll bumps the generation so older pages are
// never read again. Each generation keeps a sorted-set index of its pages
// ordered by last access: Put trims it to the capacity, and EvictAll deletes
// the previous generation's pages through it. Access expiry uses GETEX.
type RedisCache struct {
	rdb      *redis.Client
	log      *logger.Logger
	prefix   string
	ttl      time.Duration
	capacity int
}

type RedisOption func(*RedisCache)

func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisCache) { c.prefix = strings.Trim(prefix, ":") }
}

func WithRedisLogger(log *logger.Logger) RedisOption {
	return func(c *RedisCache) { c.log = log }
}

// WithRedisCapacity bounds the pages kept per generation. Zero means unbounded.
func WithRedisCapacity(capacity int) RedisOption {
	return func(c *RedisCache) { c.capacity = max(0, capacity) }
}

func NewRedisCache(rdb *redis.Client, expireAfterAccess time.Duration, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		rdb:    rdb,
		log:    logger.Discard(),
		prefix: "slotbook:availability",
		ttl:    expireAfterAccess,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *RedisCache) indexKey(generation uint64) string {
	return c.prefix + ":index:g" + strconv.FormatUint(generation, 10)
}

func (c *RedisCache) pageKey(generation uint64, key Key) string {
	return c.prefix + ":g" + strconv.FormatUint(generation, 10) + ":" + key.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) ([]model.AvailableSlot, bool) {
	generation, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("failed to read cache generation", "error", err)
		return nil, false
	}

	pageKey := c.pageKey(generation, key)
	raw, err := c.rdb.GetEx(ctx, pageKey, c.ttl).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("availability cache read failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	c.touch(ctx, generation, pageKey)

	var slots []model.AvailableSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Warn("availability cache entry is corrupt", "key", key.String(), "error", err)
		return nil, false
	}
	return slots, true
}

func (c *RedisCache) Put(ctx context.Context, key Key, slots []model.AvailableSlot, generation uint64) {
	raw, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn("failed to encode availability page", "key", key.String(), "error", err)
		return
	}
	pageKey := c.pageKey(generation, key)
	if err := c.rdb.Set(ctx, pageKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn("availability cache write failed", "key", key.String(), "error", err)
		return
	}
	c.touch(ctx, generation, pageKey)
	c.trim(ctx, generation)
}

// touch records pageKey as the most recently used page of its generation.
func (c *RedisCache) touch(ctx context.Context, generation uint64, pageKey string) {
	index := c.indexKey(generation)
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, index, redis.Z{Score: float64(time.Now().UnixNano()), Member: pageKey})
		if c.ttl > 0 {
			pipe.Expire(ctx, index, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("availability cache index update failed", "index", index, "error", err)
	}
}

// trim deletes the least recently used pages above the capacity.
func (c *RedisCache) trim(ctx context.Context, generation uint64) {
	if c.capacity == 0 {
		return
	}
	index := c.indexKey(generation)
	n, err := c.rdb.ZCard(ctx, index).Result()
	if err != nil || n <= int64(c.capacity) {
		return
	}
	evicted, err := c.rdb.ZPopMin(ctx, index, n-int64(c.capacity)).Result()
	if err != nil {
		c.log.Warn("availability cache trim failed", "index", index, "error", err)
		return
	}
	keys := make([]string, 0, len(evicted))
	for _, z := range evicted {
		if k, ok := z.Member.(string); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("availability cache trim failed", "index", index, "error", err)
	}
}

// Generation returns the current generation. When Redis cannot be read the
// result is a value no page is stored under, so the following Put is wasted
// rather than misfiled.
func (c *RedisCache) Generation(ctx context.Context) uint64 {
	n, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("failed to read cache generation", "error", err)
		return math.MaxUint64
	}
	return n
}

func (c *RedisCache) generation(ctx context.Context) (uint64, error) {
	n, err := c.rdb.Get(ctx, c.generationKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// EvictAll moves to a new generation and deletes the pages of the one it
// replaced. If the counter cannot be bumped the current pages are still
// deleted where possible, but the error is returned since a reader holding
// the old generation may write a stale page back.
func (c *RedisCache) EvictAll(ctx context.Context) error {
	next, err := c.rdb.Incr(ctx, c.generationKey()).Uint64()
	if err != nil {
		if current, genErr := c.generation(ctx); genErr == nil {
			c.dropGeneration(ctx, current)
		}
		return err
	}
	if next > 0 {
		c.dropGeneration(ctx, next-1)
	}
	return nil
}

func (c *RedisCache) dropGeneration(ctx context.Context, generation uint64) {
	index := c.indexKey(generation)
	keys, err := c.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		c.log.Warn("failed to list availability pages", "index", index, "error", err)
		return
	}
	if err := c.rdb.Del(ctx, append(keys, index)...).Err(); err != nil {
		c.log.Warn("failed to delete availability pages", "index", index, "error", err)
	}
}
