// Package usagewindow requests bucketed usage series per meter and keeps only
// the response matching each meter's latest request.
package usagewindow

import (
	"fmt"
	"strings"
	"time"

	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
)

// DefaultLookback is how far before now a window starts when no start is given.
const DefaultLookback = 7 * 24 * time.Hour

// Range is an inclusive [Start, End] window.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EndOfDay returns the last instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// DefaultRange is [now - 7 days, end of today].
func DefaultRange(now time.Time) Range {
	return Range{Start: now.Add(-DefaultLookback), End: EndOfDay(now)}
}

// WithDefaults fills a zero Start or End from DefaultRange(now).
func (r Range) WithDefaults(now time.Time) Range {
	def := DefaultRange(now)
	if r.Start.IsZero() {
		r.Start = def.Start
	}
	if r.End.IsZero() {
		r.End = def.End
	}
	return r
}

// WithLookback fills a zero Start with end-of-window minus lookback days instead of the default week.
func (r Range) WithLookback(now time.Time, days int) Range {
	if r.Start.IsZero() && days > 0 {
		r.Start = now.AddDate(0, 0, -days)
	}
	return r.WithDefaults(now)
}

func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: open-ended range", billingdomain.ErrInvalidRange)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s before start %s", billingdomain.ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Key identifies one usage window request for a meter.
type Key struct {
	MeterID string
	Start   int64
	End     int64
}

// Query is one usage window request.
type Query struct {
	MeterID    string
	CustomerID string
	Range      Range
	Interval   billingdomain.Interval
}

func (q Query) Key() Key {
	return Key{
		MeterID: q.MeterID,
		Start:   q.Range.Start.UnixNano(),
		End:     q.Range.End.UnixNano(),
	}
}

func (q Query) Validate() error {
	if strings.TrimSpace(q.MeterID) == "" {
		return billingdomain.ErrInvalidMeter
	}
	if strings.TrimSpace(q.CustomerID) == "" {
		return billingdomain.ErrInvalidCustomer
	}
	return q.Range.Validate()
}

func (q Query) interval() billingdomain.Interval {
	if q.Interval == "" {
		return billingdomain.IntervalDay
	}
	return q.Interval
}

func (q Query) request() billingdomain.UsageQuantitiesRequest {
	return billingdomain.UsageQuantitiesRequest{
		MeterID:    q.MeterID,
		CustomerID: q.CustomerID,
		Start:      q.Range.Start,
		End:        q.Range.End,
		Interval:   q.interval(),
	}
}

// flightKey collapses identical upstream requests across views of the same customer.
func (q Query) flightKey() string {
	k := q.Key()
	return fmt.Sprintf("%s|%s|%d|%d|%s", q.CustomerID, k.MeterID, k.Start, k.End, q.interval())
}

// Series is a resolved usage window for one meter.
type Series struct {
	MeterID    string                             `json:"meter_id"`
	Range      Range                              `json:"range"`
	Interval   billingdomain.Interval             `json:"interval"`
	Quantities []billingdomain.UsageQuantityPoint `json:"quantities"`
	Total      float64                            `json:"total"`
}
