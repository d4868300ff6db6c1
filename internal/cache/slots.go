// Package cache кеширует ответы поиска слотов в Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "slots"

// RedisSlotCache хранит ответы с TTL. Сброс для бизнеса — инкремент
// поколения: старые ключи перестают читаться и доживают до TTL.
type RedisSlotCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisSlotCache(rdb *redis.Client, ttl time.Duration) *RedisSlotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSlotCache{rdb: rdb, ttl: ttl, prefix: defaultPrefix}
}

// Get читает текущее поколение и ответ в нём. Поколение возвращается и
// при промахе: свежий ответ нужно записать через Set именно в него.
func (c *RedisSlotCache) Get(ctx context.Context, businessID uuid.UUID, key string) ([]byte, int64, bool, error) {
	gen, err := c.generation(ctx, businessID)
	if err != nil {
		return nil, 0, false, err
	}
	raw, err := c.rdb.Get(ctx, c.dataKey(businessID, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis get: %w", err)
	}
	return raw, gen, true, nil
}

// Set пишет ответ в поколение gen. Если с тех пор был Invalidate, запись
// ляжет в устаревшее поколение и читаться не будет.
func (c *RedisSlotCache) Set(ctx context.Context, businessID uuid.UUID, gen int64, key string, value []byte) error {
	if err := c.rdb.Set(ctx, c.dataKey(businessID, gen, key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisSlotCache) Invalidate(ctx context.Context, businessID uuid.UUID) error {
	if err := c.rdb.Incr(ctx, c.genKey(businessID)).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

// Ping проверяет соединение при старте.
func (c *RedisSlotCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisSlotCache) generation(ctx context.Context, businessID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(businessID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *RedisSlotCache) genKey(businessID uuid.UUID) string {
	return c.prefix + ":" + businessID.String() + ":gen"
}

func (c *RedisSlotCache) dataKey(businessID uuid.UUID, gen int64, key string) string {
	return c.prefix + ":" + businessID.String() + ":" + strconv.FormatInt(gen, 10) + ":" + key
}
