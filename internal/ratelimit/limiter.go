package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/chargeview/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyViewOrg = "%s:ratelimit:view:org:%s"

// Bucket decides whether one more request fits under rate/burst for key.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

// ViewLimiter budgets view requests per organization. A nil limiter allows
// everything.
type ViewLimiter struct {
	bucket Bucket
	prefix string
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewViewLimiter(p Params) *ViewLimiter {
	cfg := p.Cfg.RateLimit
	if !cfg.Enabled {
		return nil
	}
	log := p.Log.Named("ratelimit")
	if cfg.OrgRate <= 0 || cfg.OrgBurst <= 0 {
		log.Warn("rate limit disabled, org rate and burst must be positive",
			zap.Float64("rate", cfg.OrgRate),
			zap.Int("burst", cfg.OrgBurst),
		)
		return nil
	}

	var bucket Bucket = NewLocalBuckets()
	if p.Redis != nil {
		bucket = NewTokenBucket(p.Redis)
	}
	return NewViewLimiterWithBucket(bucket, p.Cfg.Redis.KeyPrefix, cfg.OrgRate, cfg.OrgBurst, log)
}

func NewViewLimiterWithBucket(bucket Bucket, prefix string, rate float64, burst int, log *zap.Logger) *ViewLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ViewLimiter{
		bucket: bucket,
		prefix: strings.TrimSpace(prefix),
		rate:   rate,
		burst:  burst,
		log:    log,
	}
}

// AllowOrg fails open: a broken bucket must not take the views down with it.
func (l *ViewLimiter) AllowOrg(ctx context.Context, orgID string) Result {
	if l == nil || l.bucket == nil {
		return Result{Allowed: true}
	}
	orgID = strings.ToLower(strings.TrimSpace(orgID))
	if orgID == "" {
		return Result{Allowed: true, Limit: l.burst}
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyViewOrg, l.prefix, orgID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request", zap.String("org_id", orgID), zap.Error(err))
		return Result{Allowed: true, Limit: l.burst}
	}
	return res
}
