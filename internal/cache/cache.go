// Package cache holds short-lived copies of upstream billing lookups.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/chargeview/internal/clock"
)

// Cache is a key/value store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, key K)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an in-process Cache. Expired entries are dropped lazily on read.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	clock clock.Clock
}

type TTLOption func(*ttlOptions)

type ttlOptions struct {
	clock clock.Clock
}

func WithClock(c clock.Clock) TTLOption {
	return func(o *ttlOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

func NewTTLCache[K comparable, V any](opts ...TTLOption) *TTLCache[K, V] {
	o := ttlOptions{clock: clock.NewSystemClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[K, V]{
		items: make(map[K]entry[V]),
		clock: o.clock,
	}
}

func (c *TTLCache[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !item.expiresAt.After(c.clock.Now()) {
		c.mu.Lock()
		if current, ok := c.items[key]; ok && current.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

func (c *TTLCache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(_ context.Context, key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len reports stored entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Noop never stores anything.
type Noop[K comparable, V any] struct{}

func (Noop[K, V]) Get(context.Context, K) (V, bool) {
	var zero V
	return zero, false
}

func (Noop[K, V]) Set(context.Context, K, V, time.Duration) {}

func (Noop[K, V]) Delete(context.Context, K) {}
