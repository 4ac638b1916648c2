package tokenstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "finmate:credentials:"

// RedisBackend stores slots as plain keys under a prefix. Writes go through a
// MULTI/EXEC pipeline.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisBackend wraps rdb. An empty prefix selects the default.
func NewRedisBackend(rdb redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

// OpenRedis connects using a redis:// URL.
func OpenRedis(ctx context.Context, url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBackend(rdb, ""), nil
}

func (b *RedisBackend) key(slot string) string {
	return b.prefix + slot
}

func (b *RedisBackend) keys() []string {
	keys := make([]string, 0, len(allSlots))
	for _, s := range allSlots {
		keys = append(keys, b.key(s))
	}
	return keys
}

func (b *RedisBackend) Load(ctx context.Context) (map[string][]byte, error) {
	vals, err := b.rdb.MGet(ctx, b.keys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	result := make(map[string][]byte, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		result[allSlots[i]] = []byte(s)
	}
	return result, nil
}

func (b *RedisBackend) Save(ctx context.Context, values map[string][]byte) error {
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for slot, value := range values {
			pipe.Set(ctx, b.key(slot), value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (b *RedisBackend) Remove(ctx context.Context) error {
	if err := b.rdb.Del(ctx, b.keys()...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
