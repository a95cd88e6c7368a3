package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSubscriptionRejectsDoubleAttachedMeter(t *testing.T) {
	sub := Subscription{
		ID:     "sub_1",
		Status: SubscriptionStatusActive,
		Meters: []SubscriptionMeter{
			{MeterID: "meter_a", Amount: 100},
			{MeterID: "meter_a", Amount: 200},
		},
	}

	err := ValidateSubscription(sub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateMeterLink))
}

func TestValidateSubscriptionAcceptsUnknownStatus(t *testing.T) {
	sub := Subscription{
		ID:       "sub_1",
		Status:   SubscriptionStatus("paused"),
		Currency: "usd",
		Prices:   []Price{{ID: "price_1", AmountType: AmountType("tiered")}},
	}
	assert.NoError(t, ValidateSubscription(sub))
}

func TestValidateSubscriptionRejectsNegativeAmount(t *testing.T) {
	sub := Subscription{ID: "sub_1", Status: SubscriptionStatusActive, Amount: -1}
	err := ValidateSubscription(sub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestValidateCustomerMetersRequiresMeterID(t *testing.T) {
	err := ValidateCustomerMeters([]CustomerMeter{
		{ID: "cm_1", CustomerID: "cus_1", MeterID: "meter_a"},
		{ID: "cm_2", CustomerID: "cus_1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestValidateUsageQuantitiesAllowsGaps(t *testing.T) {
	day := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	q := UsageQuantities{
		Quantities: []UsageQuantityPoint{
			{Timestamp: day, Quantity: 3},
			{Timestamp: day.AddDate(0, 0, 3), Quantity: 1},
		},
		Total: 4,
	}
	assert.NoError(t, ValidateUsageQuantities(q))
}

func TestValidateUsageQuantitiesRejectsOutOfOrder(t *testing.T) {
	day := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	q := UsageQuantities{
		Quantities: []UsageQuantityPoint{
			{Timestamp: day.AddDate(0, 0, 1), Quantity: 3},
			{Timestamp: day, Quantity: 1},
		},
	}
	err := ValidateUsageQuantities(q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnorderedQuantities))
}

func TestValidateChargePreviewRejectsNegativeDiscount(t *testing.T) {
	err := ValidateChargePreview(ChargePreview{SubtotalAmount: 1000, DiscountAmount: -100, TotalAmount: 1100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestParseInterval(t *testing.T) {
	interval, err := ParseInterval("")
	require.NoError(t, err)
	assert.Equal(t, IntervalDay, interval)

	interval, err = ParseInterval("week")
	require.NoError(t, err)
	assert.Equal(t, IntervalWeek, interval)

	_, err = ParseInterval("fortnight")
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
