// Package domain describes the customer-facing usage and charge views.
package domain

import (
	"context"
	"errors"
	"time"

	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/chargepreview"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"github.com/smallbiznis/chargeview/internal/meterjoin"
	"github.com/smallbiznis/chargeview/internal/usagewindow"
)

type UsageRequest struct {
	OrganizationID string
	CustomerID     string
	Start          *time.Time
	End            *time.Time
	Interval       string
	Locale         string
}

type ChargeRequest struct {
	SubscriptionID string
	Locale         string
}

// MeterView is an enriched meter with the state of its usage window.
type MeterView struct {
	meterjoin.EnrichedMeter
	Usage loadstate.State[usagewindow.Series] `json:"usage"`
}

// CustomerUsage is a point-in-time snapshot of a customer's usage view.
// Sections that had not resolved when it was taken report loading.
type CustomerUsage struct {
	OrganizationID string                                `json:"organization_id"`
	CustomerID     string                                `json:"customer_id"`
	Range          usagewindow.Range                     `json:"range"`
	RangeLabel     string                                `json:"range_label"`
	Interval       billingdomain.Interval                `json:"interval"`
	HasMeters      bool                                  `json:"has_meters"`
	Loading        bool                                  `json:"loading"`
	Meters         loadstate.State[[]MeterView]          `json:"meters"`
	Charges        loadstate.State[[]chargepreview.Card] `json:"charges"`
	GeneratedAt    time.Time                             `json:"generated_at"`
}

type EventType string

const (
	EventView   EventType = "view"
	EventMeters EventType = "meters"
	EventWindow EventType = "window"
	EventCharge EventType = "charge"
)

// Event is one incremental update of a streamed usage view.
type Event struct {
	Type EventType
	Data any
}

type ViewEvent struct {
	OrganizationID string                 `json:"organization_id"`
	CustomerID     string                 `json:"customer_id"`
	Range          usagewindow.Range      `json:"range"`
	RangeLabel     string                 `json:"range_label"`
	Interval       billingdomain.Interval `json:"interval"`
}

type MetersEvent struct {
	HasMeters bool                                       `json:"has_meters"`
	Meters    loadstate.State[[]meterjoin.EnrichedMeter] `json:"meters"`
}

type WindowEvent struct {
	MeterID string                              `json:"meter_id"`
	Ticket  string                              `json:"ticket"`
	Usage   loadstate.State[usagewindow.Series] `json:"usage"`
}

type Service interface {
	GetCustomerUsage(ctx context.Context, req UsageRequest) (CustomerUsage, error)
	// StreamCustomerUsage calls emit for every update until ctx is done or emit fails.
	StreamCustomerUsage(ctx context.Context, req UsageRequest, emit func(Event) error) error
	GetUpcomingCharge(ctx context.Context, req ChargeRequest) (chargepreview.Card, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrInvalidInterval     = errors.New("invalid_interval")
)
