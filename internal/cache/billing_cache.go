package cache

import (
	"context"
	"strings"
	"time"

	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
)

const (
	defaultMeterTTL        = 5 * time.Minute
	defaultSubscriptionTTL = 30 * time.Second
)

// BillingCache stores hot-path billing API lookups for the usage views.
// Usage windows and charge previews are never cached since they move with usage.
type BillingCache interface {
	GetCustomerMeters(ctx context.Context, orgID, customerID string) ([]billingdomain.CustomerMeter, bool)
	SetCustomerMeters(ctx context.Context, orgID, customerID string, meters []billingdomain.CustomerMeter)
	GetActiveSubscriptions(ctx context.Context, orgID, customerID string) ([]billingdomain.Subscription, bool)
	SetActiveSubscriptions(ctx context.Context, orgID, customerID string, subscriptions []billingdomain.Subscription)
	GetSubscription(ctx context.Context, subscriptionID string) (billingdomain.Subscription, bool)
	SetSubscription(ctx context.Context, subscription billingdomain.Subscription)
}

type billingCache struct {
	meters        Cache[string, []billingdomain.CustomerMeter]
	subscriptions Cache[string, []billingdomain.Subscription]
	subscription  Cache[string, billingdomain.Subscription]
	meterTTL      time.Duration
	subTTL        time.Duration
}

// TTLs configures BillingCache expiry. Zero values fall back to defaults.
type TTLs struct {
	Meter        time.Duration
	Subscription time.Duration
}

func (t TTLs) withDefaults() TTLs {
	if t.Meter <= 0 {
		t.Meter = defaultMeterTTL
	}
	if t.Subscription <= 0 {
		t.Subscription = defaultSubscriptionTTL
	}
	return t
}

// NewBillingCache returns an in-memory cache tuned for the usage views.
func NewBillingCache(ttls TTLs, opts ...TTLOption) BillingCache {
	ttls = ttls.withDefaults()
	return &billingCache{
		meters:        NewTTLCache[string, []billingdomain.CustomerMeter](opts...),
		subscriptions: NewTTLCache[string, []billingdomain.Subscription](opts...),
		subscription:  NewTTLCache[string, billingdomain.Subscription](opts...),
		meterTTL:      ttls.Meter,
		subTTL:        ttls.Subscription,
	}
}

func newBillingCacheFrom(
	meters Cache[string, []billingdomain.CustomerMeter],
	subscriptions Cache[string, []billingdomain.Subscription],
	subscription Cache[string, billingdomain.Subscription],
	ttls TTLs,
) BillingCache {
	ttls = ttls.withDefaults()
	return &billingCache{
		meters:        meters,
		subscriptions: subscriptions,
		subscription:  subscription,
		meterTTL:      ttls.Meter,
		subTTL:        ttls.Subscription,
	}
}

func (c *billingCache) GetCustomerMeters(ctx context.Context, orgID, customerID string) ([]billingdomain.CustomerMeter, bool) {
	return c.meters.Get(ctx, cacheKey(orgID, customerID))
}

func (c *billingCache) SetCustomerMeters(ctx context.Context, orgID, customerID string, meters []billingdomain.CustomerMeter) {
	if meters == nil {
		return
	}
	c.meters.Set(ctx, cacheKey(orgID, customerID), meters, c.meterTTL)
}

func (c *billingCache) GetActiveSubscriptions(ctx context.Context, orgID, customerID string) ([]billingdomain.Subscription, bool) {
	return c.subscriptions.Get(ctx, cacheKey(orgID, customerID))
}

func (c *billingCache) SetActiveSubscriptions(ctx context.Context, orgID, customerID string, subscriptions []billingdomain.Subscription) {
	if subscriptions == nil {
		return
	}
	c.subscriptions.Set(ctx, cacheKey(orgID, customerID), subscriptions, c.subTTL)
}

func (c *billingCache) GetSubscription(ctx context.Context, subscriptionID string) (billingdomain.Subscription, bool) {
	return c.subscription.Get(ctx, cacheKey(subscriptionID))
}

func (c *billingCache) SetSubscription(ctx context.Context, subscription billingdomain.Subscription) {
	if subscription.ID == "" {
		return
	}
	c.subscription.Set(ctx, cacheKey(subscription.ID), subscription, c.subTTL)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
