package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/clock"
	"github.com/smallbiznis/chargeview/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewBillingCacheFromConfig),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

// NewRedisClient connects only when the redis backend is selected and returns
// nil otherwise. Consumers fall back to in-process state on nil.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.Cache.Backend != config.CacheBackendRedis {
		return nil
	}
	log = log.Named("cache.redis")
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, lookups will miss", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// NewBillingCacheFromConfig selects the configured backend.
func NewBillingCacheFromConfig(p Params) BillingCache {
	log := p.Log.Named("cache")
	ttls := TTLs{Meter: p.Cfg.Cache.MeterTTL, Subscription: p.Cfg.Cache.SubscriptionTTL}

	switch p.Cfg.Cache.Backend {
	case config.CacheBackendNone:
		log.Info("billing cache disabled")
		return newBillingCacheFrom(
			Noop[string, []billingdomain.CustomerMeter]{},
			Noop[string, []billingdomain.Subscription]{},
			Noop[string, billingdomain.Subscription]{},
			ttls,
		)
	case config.CacheBackendRedis:
		if p.Redis == nil {
			return NewBillingCache(ttls, WithClock(p.Clock))
		}
		prefix := p.Cfg.Redis.KeyPrefix
		log.Info("billing cache using redis", zap.String("addr", p.Cfg.Redis.Addr))
		return newBillingCacheFrom(
			NewRedisCache[[]billingdomain.CustomerMeter](p.Redis, prefix, "customer_meters", log),
			NewRedisCache[[]billingdomain.Subscription](p.Redis, prefix, "active_subscriptions", log),
			NewRedisCache[billingdomain.Subscription](p.Redis, prefix, "subscription", log),
			ttls,
		)
	default:
		return NewBillingCache(ttls, WithClock(p.Clock))
	}
}
