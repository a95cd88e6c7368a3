// Package domain contains the read-only billing records fetched from the upstream billing API.
package domain

import "time"

// SubscriptionStatus represents lifecycle states reported for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// AmountType describes how a price is charged.
type AmountType string

const (
	AmountTypeFixed       AmountType = "fixed"
	AmountTypeCustom      AmountType = "custom"
	AmountTypeFree        AmountType = "free"
	AmountTypeMeteredUnit AmountType = "metered_unit"
	AmountTypeSeatBased   AmountType = "seat_based"
)

// Meter is a billable usage dimension owned by an organization.
type Meter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CustomerMeter is a customer's enrollment in a meter. It exists independently of
// subscription state.
type CustomerMeter struct {
	ID            string  `json:"id" validate:"required"`
	CustomerID    string  `json:"customer_id" validate:"required"`
	MeterID       string  `json:"meter_id" validate:"required"`
	MeterName     string  `json:"meter_name"`
	ConsumedUnits float64 `json:"consumed_units"`
	CreditedUnits float64 `json:"credited_units"`
	Balance       float64 `json:"balance"`
}

// Product is the subscribed product snapshot.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Price is one price attached to a subscription.
type Price struct {
	ID         string     `json:"id"`
	AmountType AmountType `json:"amount_type" validate:"required"`
}

// SubscriptionMeter links a meter to a subscription's current billing cycle.
type SubscriptionMeter struct {
	ID            string  `json:"id"`
	MeterID       string  `json:"meter_id" validate:"required"`
	ConsumedUnits float64 `json:"consumed_units"`
	CreditedUnits float64 `json:"credited_units"`
	Amount        int64   `json:"amount" validate:"gte=0"`
	Meter         Meter   `json:"meter"`
}

// Subscription captures a customer's billing agreement as reported upstream.
type Subscription struct {
	ID                 string              `json:"id" validate:"required"`
	CustomerID         string              `json:"customer_id"`
	Status             SubscriptionStatus  `json:"status" validate:"required"`
	CancelAtPeriodEnd  bool                `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time          `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time          `json:"current_period_end,omitempty"`
	TrialStart         *time.Time          `json:"trial_start,omitempty"`
	TrialEnd           *time.Time          `json:"trial_end,omitempty"`
	EndedAt            *time.Time          `json:"ended_at,omitempty"`
	Amount             int64               `json:"amount" validate:"gte=0"`
	Currency           string              `json:"currency" validate:"omitempty,len=3"`
	Product            Product             `json:"product"`
	Prices             []Price             `json:"prices" validate:"dive"`
	Meters             []SubscriptionMeter `json:"meters" validate:"dive"`
}

// HasMeters reports whether any meter is attached to the subscription.
func (s Subscription) HasMeters() bool {
	return len(s.Meters) > 0
}

// UsageQuantityPoint is one bucket of a usage time series.
type UsageQuantityPoint struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Quantity  float64   `json:"quantity"`
}

// UsageQuantities is a bucketed usage series for one meter and window.
type UsageQuantities struct {
	Quantities []UsageQuantityPoint `json:"quantities" validate:"dive"`
	Total      float64              `json:"total"`
}

// ChargePreview is the server-computed projection of a subscription's next invoice.
// All amounts are minor currency units.
type ChargePreview struct {
	SubtotalAmount int64 `json:"subtotal_amount" validate:"gte=0"`
	DiscountAmount int64 `json:"discount_amount" validate:"gte=0"`
	TaxAmount      int64 `json:"tax_amount" validate:"gte=0"`
	TotalAmount    int64 `json:"total_amount" validate:"gte=0"`
}
