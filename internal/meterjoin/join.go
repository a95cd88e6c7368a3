// Package meterjoin pairs customer meters with the active subscription that bills them.
package meterjoin

import (
	"github.com/samber/lo"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/loadstate"
)

// EnrichedMeter is a customer meter together with its matched subscription, if any.
type EnrichedMeter struct {
	billingdomain.CustomerMeter
	Subscription *billingdomain.Subscription `json:"subscription"`
}

// Join returns one EnrichedMeter per customer meter, in input order. The
// subscription is the first entry of activeSubscriptions whose meters reference
// the customer meter's meter_id, or nil. A nil customerMeters yields an empty slice.
func Join(customerMeters []billingdomain.CustomerMeter, activeSubscriptions []billingdomain.Subscription) []EnrichedMeter {
	return lo.Map(customerMeters, func(cm billingdomain.CustomerMeter, _ int) EnrichedMeter {
		return EnrichedMeter{
			CustomerMeter: cm,
			Subscription:  SubscriptionForMeter(cm.MeterID, activeSubscriptions),
		}
	})
}

// SubscriptionForMeter returns a copy of the first subscription referencing meterID.
func SubscriptionForMeter(meterID string, subscriptions []billingdomain.Subscription) *billingdomain.Subscription {
	sub, ok := lo.Find(subscriptions, func(s billingdomain.Subscription) bool {
		return lo.ContainsBy(s.Meters, func(m billingdomain.SubscriptionMeter) bool {
			return m.MeterID == meterID
		})
	})
	if !ok {
		return nil
	}
	return &sub
}

// JoinStates derives the enriched list from whatever inputs have resolved.
//
// The result follows the customer meter state. Subscriptions that are still
// loading or failed join as an empty list, so every meter is reported with a nil
// subscription until they resolve.
func JoinStates(
	customerMeters loadstate.State[[]billingdomain.CustomerMeter],
	activeSubscriptions loadstate.State[[]billingdomain.Subscription],
) loadstate.State[[]EnrichedMeter] {
	subs := activeSubscriptions.DataOr(nil)
	return loadstate.Map(customerMeters, func(items []billingdomain.CustomerMeter) []EnrichedMeter {
		return Join(items, subs)
	})
}
