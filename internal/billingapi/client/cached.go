package client

import (
	"context"
	"slices"

	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/cache"
)

// CacheRecorder observes cache hits and misses.
type CacheRecorder interface {
	RecordCacheLookup(source string, hit bool)
}

// CachedClient serves meter and subscription lookups from a BillingCache.
// Usage quantities and charge previews always go upstream.
type CachedClient struct {
	next     billingdomain.Client
	cache    cache.BillingCache
	recorder CacheRecorder
}

func NewCachedClient(next billingdomain.Client, c cache.BillingCache, recorder CacheRecorder) *CachedClient {
	return &CachedClient{next: next, cache: c, recorder: recorder}
}

var _ billingdomain.Client = (*CachedClient)(nil)

func (c *CachedClient) ListCustomerMeters(ctx context.Context, req billingdomain.ListCustomerMetersRequest) ([]billingdomain.CustomerMeter, error) {
	if !isDefaultMeterSorting(req.Sorting) {
		return c.next.ListCustomerMeters(ctx, req)
	}
	if items, ok := c.cache.GetCustomerMeters(ctx, req.OrganizationID, req.CustomerID); ok {
		c.record("customer_meters", true)
		return items, nil
	}
	c.record("customer_meters", false)

	items, err := c.next.ListCustomerMeters(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.SetCustomerMeters(ctx, req.OrganizationID, req.CustomerID, items)
	return items, nil
}

func (c *CachedClient) ListSubscriptions(ctx context.Context, req billingdomain.ListSubscriptionsRequest) ([]billingdomain.Subscription, error) {
	if req.Active == nil || !*req.Active {
		return c.next.ListSubscriptions(ctx, req)
	}
	if items, ok := c.cache.GetActiveSubscriptions(ctx, req.OrganizationID, req.CustomerID); ok {
		c.record("active_subscriptions", true)
		return items, nil
	}
	c.record("active_subscriptions", false)

	items, err := c.next.ListSubscriptions(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.SetActiveSubscriptions(ctx, req.OrganizationID, req.CustomerID, items)
	return items, nil
}

func (c *CachedClient) GetSubscription(ctx context.Context, subscriptionID string) (billingdomain.Subscription, error) {
	if sub, ok := c.cache.GetSubscription(ctx, subscriptionID); ok {
		c.record("subscription", true)
		return sub, nil
	}
	c.record("subscription", false)

	sub, err := c.next.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return billingdomain.Subscription{}, err
	}
	c.cache.SetSubscription(ctx, sub)
	return sub, nil
}

func (c *CachedClient) GetUsageQuantities(ctx context.Context, req billingdomain.UsageQuantitiesRequest) (billingdomain.UsageQuantities, error) {
	return c.next.GetUsageQuantities(ctx, req)
}

func (c *CachedClient) GetChargePreview(ctx context.Context, subscriptionID string) (billingdomain.ChargePreview, error) {
	return c.next.GetChargePreview(ctx, subscriptionID)
}

func (c *CachedClient) record(source string, hit bool) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordCacheLookup(source, hit)
}

func isDefaultMeterSorting(sorting []string) bool {
	return len(sorting) == 0 || slices.Equal(sorting, []string{defaultMeterSorting})
}
