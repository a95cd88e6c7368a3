package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang/snappy"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache shares entries between replicas. Values are stored as
// snappy-compressed JSON under "<prefix>:<namespace>:<key>".
type RedisCache[V any] struct {
	client    redis.UniversalClient
	prefix    string
	namespace string
	log       *zap.Logger
}

func NewRedisCache[V any](client redis.UniversalClient, prefix, namespace string, log *zap.Logger) *RedisCache[V] {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache[V]{
		client:    client,
		prefix:    strings.Trim(strings.TrimSpace(prefix), ":"),
		namespace: strings.Trim(strings.TrimSpace(namespace), ":"),
		log:       log,
	}
}

func (c *RedisCache[V]) key(key string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{c.prefix, c.namespace, key} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ":")
}

func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", c.key(key)), zap.Error(err))
		}
		return zero, false
	}
	value, err := decodeValue[V](raw)
	if err != nil {
		c.log.Warn("cache entry undecodable", zap.String("key", c.key(key)), zap.Error(err))
		return zero, false
	}
	return value, true
}

func (c *RedisCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := encodeValue(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", c.key(key)), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}

func (c *RedisCache[V]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.log.Warn("cache delete failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}

func encodeValue[V any](value V) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, payload), nil
}

func decodeValue[V any](raw []byte) (V, error) {
	var value V
	payload, err := snappy.Decode(nil, raw)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, err
	}
	return value, nil
}
