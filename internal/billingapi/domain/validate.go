package domain

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func invalid(entity string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, entity, err)
}

// ValidateCustomerMeters checks customer meter records before they enter the core.
func ValidateCustomerMeters(items []CustomerMeter) error {
	v := validatorInstance()
	for i := range items {
		if err := v.Struct(items[i]); err != nil {
			return invalid("customer_meter", err)
		}
	}
	return nil
}

// ValidateSubscription checks one subscription, including the single-link rule for meters.
func ValidateSubscription(sub Subscription) error {
	if err := validatorInstance().Struct(sub); err != nil {
		return invalid("subscription", err)
	}
	seen := make(map[string]struct{}, len(sub.Meters))
	for _, m := range sub.Meters {
		if _, ok := seen[m.MeterID]; ok {
			return fmt.Errorf("%w: subscription %s meter %s", ErrDuplicateMeterLink, sub.ID, m.MeterID)
		}
		seen[m.MeterID] = struct{}{}
	}
	return nil
}

// ValidateSubscriptions validates every subscription in a list.
func ValidateSubscriptions(items []Subscription) error {
	for i := range items {
		if err := ValidateSubscription(items[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUsageQuantities checks that buckets are well-formed and chronological.
// Gaps between buckets are valid.
func ValidateUsageQuantities(q UsageQuantities) error {
	if err := validatorInstance().Struct(q); err != nil {
		return invalid("usage_quantities", err)
	}
	for i := 1; i < len(q.Quantities); i++ {
		if !q.Quantities[i].Timestamp.After(q.Quantities[i-1].Timestamp) {
			return fmt.Errorf("%w: bucket %d at %s", ErrUnorderedQuantities, i, q.Quantities[i].Timestamp)
		}
	}
	return nil
}

// ValidateChargePreview rejects negative preview amounts.
func ValidateChargePreview(p ChargePreview) error {
	if err := validatorInstance().Struct(p); err != nil {
		return invalid("charge_preview", err)
	}
	return nil
}
