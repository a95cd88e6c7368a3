package domain

import (
	"context"
	"errors"
	"time"
)

// Interval is the bucket size of a usage quantities request.
type Interval string

const (
	IntervalHour  Interval = "hour"
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// ParseInterval maps a raw interval to a supported value. Empty input yields IntervalDay.
func ParseInterval(raw string) (Interval, error) {
	switch Interval(raw) {
	case "":
		return IntervalDay, nil
	case IntervalHour, IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return Interval(raw), nil
	default:
		return "", ErrInvalidInterval
	}
}

type ListCustomerMetersRequest struct {
	OrganizationID string
	CustomerID     string
	Sorting        []string
}

type ListSubscriptionsRequest struct {
	OrganizationID string
	CustomerID     string
	Active         *bool
}

type UsageQuantitiesRequest struct {
	MeterID    string
	CustomerID string
	Start      time.Time
	End        time.Time
	Interval   Interval
}

// Client is the upstream billing API consumed by the aggregation core.
//
//go:generate mockgen -source=service.go -destination=../mocks/mock_client.go -package=mocks
type Client interface {
	ListCustomerMeters(ctx context.Context, req ListCustomerMetersRequest) ([]CustomerMeter, error)
	ListSubscriptions(ctx context.Context, req ListSubscriptionsRequest) ([]Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
	GetUsageQuantities(ctx context.Context, req UsageQuantitiesRequest) (UsageQuantities, error)
	GetChargePreview(ctx context.Context, subscriptionID string) (ChargePreview, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidMeter        = errors.New("invalid_meter")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidInterval     = errors.New("invalid_interval")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrDuplicateMeterLink  = errors.New("duplicate_subscription_meter")
	ErrUnorderedQuantities = errors.New("unordered_usage_quantities")
	ErrNotFound            = errors.New("not_found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
)
