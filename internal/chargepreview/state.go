// Package chargepreview decides how a subscription's next charge is presented.
package chargepreview

import (
	"time"

	"github.com/samber/lo"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
)

// DisplayState is the card variant chosen for a subscription.
type DisplayState uint8

const (
	DisplayHidden DisplayState = iota
	DisplayTrialing
	DisplayCanceling
	DisplayActive
)

func (s DisplayState) String() string {
	switch s {
	case DisplayTrialing:
		return "trialing"
	case DisplayCanceling:
		return "canceling"
	case DisplayActive:
		return "active"
	default:
		return "hidden"
	}
}

func (s DisplayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HiddenReason explains a DisplayHidden decision.
type HiddenReason string

const (
	HiddenReasonNone          HiddenReason = ""
	HiddenReasonStatus        HiddenReason = "status"
	HiddenReasonNotApplicable HiddenReason = "not_applicable"
)

type stateConfig struct {
	title           string
	dateLabel       string
	totalLabel      string
	productCanceled bool
	chargeDate      func(billingdomain.Subscription) *time.Time
	footnote        func(hasMeters bool) string
}

func trialEnd(sub billingdomain.Subscription) *time.Time  { return sub.TrialEnd }
func periodEnd(sub billingdomain.Subscription) *time.Time { return sub.CurrentPeriodEnd }

const usageVaries = "Final charges may vary based on usage until the end of the billing period."

var displayStates = map[DisplayState]stateConfig{
	DisplayTrialing: {
		title:      "First Charge After Trial",
		dateLabel:  "Trial Ends",
		totalLabel: "Total",
		chargeDate: trialEnd,
		footnote: func(hasMeters bool) string {
			if !hasMeters {
				return ""
			}
			return "Final charges may vary based on usage during the trial period."
		},
	},
	DisplayCanceling: {
		title:           "Final Charge",
		dateLabel:       "Subscription Ends",
		totalLabel:      "Final Charge",
		productCanceled: true,
		chargeDate:      periodEnd,
		footnote: func(hasMeters bool) string {
			out := "This will be the final charge when the subscription ends."
			if hasMeters {
				out += " Final amount may vary based on usage until the end of the billing period."
			}
			return out
		},
	},
	DisplayActive: {
		title:      "Upcoming Charge",
		dateLabel:  "Next Invoice",
		totalLabel: "Total",
		chargeDate: periodEnd,
		footnote: func(hasMeters bool) string {
			if !hasMeters {
				return ""
			}
			return usageVaries
		},
	},
}

// Decide picks the display state for sub.
//
// Only trialing and active subscriptions are shown. A subscription with a free
// price and no meters is hidden as well since nothing will ever be charged.
func Decide(sub billingdomain.Subscription) (DisplayState, HiddenReason) {
	var state DisplayState
	switch sub.Status {
	case billingdomain.SubscriptionStatusTrialing:
		state = DisplayTrialing
	case billingdomain.SubscriptionStatusActive:
		state = DisplayActive
		if sub.CancelAtPeriodEnd && sub.EndedAt == nil {
			state = DisplayCanceling
		}
	default:
		return DisplayHidden, HiddenReasonStatus
	}

	if isFree(sub) && !sub.HasMeters() {
		return DisplayHidden, HiddenReasonNotApplicable
	}
	return state, HiddenReasonNone
}

func isFree(sub billingdomain.Subscription) bool {
	return lo.ContainsBy(sub.Prices, func(p billingdomain.Price) bool {
		return p.AmountType == billingdomain.AmountTypeFree
	})
}
