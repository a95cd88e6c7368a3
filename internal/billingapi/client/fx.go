package client

import (
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/cache"
	"github.com/smallbiznis/chargeview/internal/config"
	"github.com/smallbiznis/chargeview/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("billingapi.client",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Cache       cache.BillingCache
	Metrics     *metrics.Metrics     `optional:"true"`
	ViewMetrics *metrics.ViewMetrics `optional:"true"`
}

func New(p Params) billingdomain.Client {
	log := p.Log.Named("billingapi.client")
	if p.Cfg.BillingAPI.Token == "" {
		log.Warn("billing api token is empty, upstream calls will be anonymous")
	}

	var upstream UpstreamRecorder
	if p.Metrics != nil {
		upstream = p.Metrics
	}
	var lookups CacheRecorder
	if p.ViewMetrics != nil {
		lookups = p.ViewMetrics
	}

	httpClient := NewHTTPClient(Config{
		BaseURL:    p.Cfg.BillingAPI.BaseURL,
		Token:      p.Cfg.BillingAPI.Token,
		Timeout:    p.Cfg.BillingAPI.Timeout,
		MaxRetries: p.Cfg.BillingAPI.MaxRetries,
		PageSize:   p.Cfg.BillingAPI.PageSize,
		MaxPages:   p.Cfg.BillingAPI.MaxPages,
	}, WithLogger(log), WithRecorder(upstream))

	return NewCachedClient(httpClient, p.Cache, lookups)
}
