package service

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/chargepreview"
	customerview "github.com/smallbiznis/chargeview/internal/customerview/domain"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"github.com/smallbiznis/chargeview/internal/meterjoin"
	"github.com/smallbiznis/chargeview/internal/observability/logger"
	"github.com/smallbiznis/chargeview/internal/usagewindow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var meterSorting = []string{"meter_name"}

// session holds the sources of one customer view. Every derived value is
// recomputed from whatever sources have resolved at the time it is read.
type session struct {
	svc     *Service
	tracker *usagewindow.Tracker
	events  chan<- customerview.Event
	done    <-chan struct{}

	mu       sync.Mutex
	params   viewParams
	meters   loadstate.State[[]billingdomain.CustomerMeter]
	subs     loadstate.State[[]billingdomain.Subscription]
	previews map[string]loadstate.State[billingdomain.ChargePreview]
}

func (s *Service) newSession(p viewParams, events chan<- customerview.Event, done <-chan struct{}) *session {
	sess := &session{
		svc:      s,
		events:   events,
		done:     done,
		params:   p,
		meters:   loadstate.Loading[[]billingdomain.CustomerMeter](),
		subs:     loadstate.Loading[[]billingdomain.Subscription](),
		previews: make(map[string]loadstate.State[billingdomain.ChargePreview]),
	}

	opts := []usagewindow.TrackerOption{usagewindow.WithGroup(s.windows)}
	if s.viewMetrics != nil {
		opts = append(opts, usagewindow.WithRecorder(s.viewMetrics))
	}
	if events != nil {
		opts = append(opts, usagewindow.WithNotify(sess.onWindow))
	}
	sess.tracker = usagewindow.NewTracker(s.client, s.genID, s.log, opts...)
	return sess
}

// load fetches meters and subscriptions concurrently. Usage windows are requested
// as soon as meters arrive and previews as soon as subscriptions arrive.
func (sess *session) load(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		sess.loadMeters(ctx)
		return nil
	})
	g.Go(func() error {
		sess.loadSubscriptions(ctx, &g)
		return nil
	})
	_ = g.Wait()
}

func (sess *session) loadMeters(ctx context.Context) {
	p := sess.currentParams()
	items, err := sess.svc.client.ListCustomerMeters(ctx, billingdomain.ListCustomerMetersRequest{
		OrganizationID: p.orgID,
		CustomerID:     p.customerID,
		Sorting:        meterSorting,
	})
	if err != nil {
		sess.fetchFailed(ctx, "customer_meters", err)
	}
	state := loadstate.FromResult(items, err, isEmpty[billingdomain.CustomerMeter])

	sess.mu.Lock()
	sess.meters = state
	rng := sess.params.rng
	sess.mu.Unlock()

	sess.emitMeters()
	sess.requestWindows(ctx, rng)
}

func (sess *session) loadSubscriptions(ctx context.Context, g *errgroup.Group) {
	p := sess.currentParams()
	active := true
	items, err := sess.svc.client.ListSubscriptions(ctx, billingdomain.ListSubscriptionsRequest{
		OrganizationID: p.orgID,
		CustomerID:     p.customerID,
		Active:         &active,
	})
	if err != nil {
		sess.fetchFailed(ctx, "subscriptions", err)
	}
	state := loadstate.FromResult(items, err, isEmpty[billingdomain.Subscription])

	visible := lo.Filter(state.DataOr(nil), func(sub billingdomain.Subscription, _ int) bool {
		displayState, _ := chargepreview.Decide(sub)
		return displayState != chargepreview.DisplayHidden
	})

	sess.mu.Lock()
	sess.subs = state
	for _, sub := range visible {
		sess.previews[sub.ID] = loadstate.Loading[billingdomain.ChargePreview]()
	}
	sess.mu.Unlock()

	sess.emitMeters()
	for _, sub := range visible {
		sess.emitCard(sub)
	}
	for _, sub := range visible {
		g.Go(func() error {
			sess.loadPreview(ctx, sub)
			return nil
		})
	}
}

func (sess *session) loadPreview(ctx context.Context, sub billingdomain.Subscription) {
	data, err := sess.svc.client.GetChargePreview(ctx, sub.ID)
	if err != nil {
		sess.fetchFailed(ctx, "charge_preview", err, zap.String("subscription_id", sub.ID))
	}

	sess.mu.Lock()
	sess.previews[sub.ID] = loadstate.FromResult(data, err, nil)
	sess.mu.Unlock()

	sess.emitCard(sub)
}

func (sess *session) requestWindows(ctx context.Context, rng usagewindow.Range) {
	sess.mu.Lock()
	items := sess.meters.DataOr(nil)
	p := sess.params
	sess.mu.Unlock()

	for _, cm := range items {
		_, err := sess.tracker.Request(ctx, usagewindow.Query{
			MeterID:    cm.MeterID,
			CustomerID: p.customerID,
			Range:      rng,
			Interval:   p.interval,
		})
		if err != nil {
			logger.WithContext(ctx, sess.svc.log).Warn("usage window rejected",
				zap.String("meter_id", cm.MeterID),
				zap.Error(err),
			)
		}
	}
}

// roll moves an unpinned range forward to now and re-requests every window.
func (sess *session) roll(ctx context.Context, now time.Time) bool {
	sess.mu.Lock()
	if sess.params.pinned {
		sess.mu.Unlock()
		return false
	}
	rng := usagewindow.Range{}.WithLookback(now, sess.params.view.WindowDays)
	sess.params.rng = rng
	sess.mu.Unlock()

	sess.requestWindows(ctx, rng)
	return true
}

func (sess *session) currentParams() viewParams {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.params
}

func (sess *session) fetchFailed(ctx context.Context, source string, err error, fields ...zap.Field) {
	fields = append([]zap.Field{zap.String("source", source), zap.Error(err)}, fields...)
	logger.WithContext(ctx, sess.svc.log).Warn("view section unavailable", fields...)
	sess.svc.viewMetrics.RecordFetchFailure(source, err)
}

func (sess *session) previewFor(subscriptionID string) loadstate.State[billingdomain.ChargePreview] {
	if state, ok := sess.previews[subscriptionID]; ok {
		return state
	}
	return loadstate.Loading[billingdomain.ChargePreview]()
}

func (sess *session) viewEvent() customerview.ViewEvent {
	p := sess.currentParams()
	return customerview.ViewEvent{
		OrganizationID: p.orgID,
		CustomerID:     p.customerID,
		Range:          p.rng,
		RangeLabel:     sess.svc.rangeLabel(p),
		Interval:       p.interval,
	}
}

func (sess *session) snapshot() customerview.CustomerUsage {
	sess.mu.Lock()
	p := sess.params
	meters := sess.meters
	subs := sess.subs
	previews := make(map[string]loadstate.State[billingdomain.ChargePreview], len(sess.previews))
	for id, state := range sess.previews {
		previews[id] = state
	}
	sess.mu.Unlock()

	windows := sess.tracker.States()
	windowFor := func(meterID string) loadstate.State[usagewindow.Series] {
		if state, ok := windows[meterID]; ok {
			return state
		}
		return loadstate.Loading[usagewindow.Series]()
	}

	meterViews := loadstate.Map(meterjoin.JoinStates(meters, subs), func(items []meterjoin.EnrichedMeter) []customerview.MeterView {
		return lo.Map(items, func(m meterjoin.EnrichedMeter, _ int) customerview.MeterView {
			return customerview.MeterView{EnrichedMeter: m, Usage: windowFor(m.MeterID)}
		})
	})

	opts := []chargepreview.Option{chargepreview.WithLocale(p.locale)}
	charges := loadstate.Map(subs, func(items []billingdomain.Subscription) []chargepreview.Card {
		return lo.FilterMap(items, func(sub billingdomain.Subscription, _ int) (chargepreview.Card, bool) {
			preview, ok := previews[sub.ID]
			if !ok {
				preview = loadstate.Loading[billingdomain.ChargePreview]()
			}
			card := chargepreview.Assemble(sub, preview, opts...)
			return card, card.Visible()
		})
	})

	loading := meters.IsLoading() || subs.IsLoading() ||
		lo.ContainsBy(meterViews.DataOr(nil), func(m customerview.MeterView) bool { return m.Usage.IsLoading() }) ||
		lo.ContainsBy(charges.DataOr(nil), func(c chargepreview.Card) bool { return c.Loading })

	return customerview.CustomerUsage{
		OrganizationID: p.orgID,
		CustomerID:     p.customerID,
		Range:          p.rng,
		RangeLabel:     sess.svc.rangeLabel(p),
		Interval:       p.interval,
		HasMeters:      len(meters.DataOr(nil)) > 0,
		Loading:        loading,
		Meters:         meterViews,
		Charges:        charges,
		GeneratedAt:    sess.svc.clock.Now(),
	}
}

func (sess *session) onWindow(r usagewindow.Resolution) {
	sess.emit(customerview.Event{
		Type: customerview.EventWindow,
		Data: customerview.WindowEvent{
			MeterID: r.MeterID,
			Ticket:  r.Ticket.String(),
			Usage:   r.State,
		},
	})
}

func (sess *session) emitMeters() {
	if sess.events == nil {
		return
	}
	sess.mu.Lock()
	meters := sess.meters
	subs := sess.subs
	sess.mu.Unlock()

	sess.emit(customerview.Event{
		Type: customerview.EventMeters,
		Data: customerview.MetersEvent{
			HasMeters: len(meters.DataOr(nil)) > 0,
			Meters:    meterjoin.JoinStates(meters, subs),
		},
	})
}

func (sess *session) emitCard(sub billingdomain.Subscription) {
	if sess.events == nil {
		return
	}
	sess.mu.Lock()
	preview := sess.previewFor(sub.ID)
	locale := sess.params.locale
	sess.mu.Unlock()

	card := chargepreview.Assemble(sub, preview, chargepreview.WithLocale(locale))
	sess.emit(customerview.Event{Type: customerview.EventCharge, Data: card})
}

func (sess *session) emit(ev customerview.Event) {
	if sess.events == nil {
		return
	}
	select {
	case sess.events <- ev:
	case <-sess.done:
	}
}

func isEmpty[T any](items []T) bool {
	return len(items) == 0
}
