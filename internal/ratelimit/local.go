package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// LocalBuckets keeps one limiter per key in process. Used when no redis is
// configured; each replica then enforces its own budget.
type LocalBuckets struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalBuckets() *LocalBuckets {
	return &LocalBuckets{limiters: make(map[string]*rate.Limiter)}
}

func (b *LocalBuckets) Allow(ctx context.Context, key string, r float64, burst int) (Result, error) {
	if err := validateBucket(key, r, burst); err != nil {
		return Result{}, err
	}

	b.mu.Lock()
	limiter, ok := b.limiters[key]
	if !ok || limiter.Limit() != rate.Limit(r) || limiter.Burst() != burst {
		limiter = rate.NewLimiter(rate.Limit(r), burst)
		b.limiters[key] = limiter
	}
	b.mu.Unlock()

	allowed := limiter.Allow()
	return newResult(allowed, limiter.Tokens(), r, burst), nil
}
