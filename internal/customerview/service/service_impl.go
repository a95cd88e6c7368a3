package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/chargepreview"
	"github.com/smallbiznis/chargeview/internal/clock"
	"github.com/smallbiznis/chargeview/internal/config"
	customerview "github.com/smallbiznis/chargeview/internal/customerview/domain"
	"github.com/smallbiznis/chargeview/internal/interval"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"github.com/smallbiznis/chargeview/internal/observability/logger"
	"github.com/smallbiznis/chargeview/internal/observability/metrics"
	"github.com/smallbiznis/chargeview/internal/usagewindow"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

type Params struct {
	fx.In

	Client      billingdomain.Client
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Views       *config.ViewConfigHolder
	Metrics     *metrics.Metrics     `optional:"true"`
	ViewMetrics *metrics.ViewMetrics `optional:"true"`
}

type Service struct {
	client      billingdomain.Client
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	views       *config.ViewConfigHolder
	metrics     *metrics.Metrics
	viewMetrics *metrics.ViewMetrics

	// usage windows for the same customer/meter/range collapse into one upstream call
	// across concurrent views
	windows *singleflight.Group
}

func NewService(p Params) customerview.Service {
	return &Service{
		client:      p.Client,
		log:         p.Log.Named("customerview.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		views:       p.Views,
		metrics:     p.Metrics,
		viewMetrics: p.ViewMetrics,
		windows:     &singleflight.Group{},
	}
}

// viewParams is a validated usage request resolved against the current view config.
type viewParams struct {
	orgID      string
	customerID string
	rng        usagewindow.Range
	pinned     bool
	interval   billingdomain.Interval
	locale     language.Tag
	view       config.ViewConfig
}

func (s *Service) resolve(req customerview.UsageRequest) (viewParams, error) {
	orgID := strings.TrimSpace(req.OrganizationID)
	if orgID == "" {
		return viewParams{}, customerview.ErrInvalidOrganization
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return viewParams{}, customerview.ErrInvalidCustomer
	}

	view := s.views.Get()
	rawInterval := strings.TrimSpace(req.Interval)
	if rawInterval == "" {
		rawInterval = view.Interval
	}
	iv, err := billingdomain.ParseInterval(rawInterval)
	if err != nil {
		return viewParams{}, customerview.ErrInvalidInterval
	}

	var rng usagewindow.Range
	if req.Start != nil {
		rng.Start = *req.Start
	}
	if req.End != nil {
		rng.End = *req.End
	}
	pinned := req.Start != nil || req.End != nil
	rng = rng.WithLookback(s.clock.Now(), view.WindowDays)
	if err := rng.Validate(); err != nil {
		return viewParams{}, customerview.ErrInvalidRange
	}

	localeRaw := strings.TrimSpace(req.Locale)
	if localeRaw == "" {
		localeRaw = view.Locale
	}

	return viewParams{
		orgID:      orgID,
		customerID: customerID,
		rng:        rng,
		pinned:     pinned,
		interval:   iv,
		locale:     interval.ParseLocale(localeRaw),
		view:       view,
	}, nil
}

func (s *Service) rangeLabel(p viewParams) string {
	return interval.Format(p.rng.Start, p.rng.End,
		interval.WithLocale(p.locale),
		interval.HideCurrentYear(p.view.HideCurrentYear),
		interval.WithNow(s.clock.Now),
	)
}

// GetCustomerUsage loads every section concurrently and returns once all of them
// settled or the settle timeout elapsed, whichever comes first.
func (s *Service) GetCustomerUsage(ctx context.Context, req customerview.UsageRequest) (customerview.CustomerUsage, error) {
	p, err := s.resolve(req)
	if err != nil {
		return customerview.CustomerUsage{}, err
	}
	log := logger.WithCustomer(logger.WithContext(ctx, s.log), p.customerID)

	sess := s.newSession(p, nil, nil)
	settleCtx, cancel := context.WithTimeout(ctx, p.view.SettleTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.load(ctx)
		_ = sess.tracker.Wait(ctx)
	}()

	select {
	case <-done:
	case <-settleCtx.Done():
		if errors.Is(settleCtx.Err(), context.DeadlineExceeded) {
			log.Info("usage view returned before every section settled",
				zap.Duration("settle_timeout", p.view.SettleTimeout),
			)
		}
	}

	out := sess.snapshot()
	for _, card := range out.Charges.DataOr(nil) {
		s.viewMetrics.RecordChargeCard(card.State.String(), card.Preview.String())
	}
	s.metrics.RecordViewAssembled(ctx, "customer_usage", !out.Loading)
	return out, nil
}

// StreamCustomerUsage emits the view header, then every section as it resolves.
// Unpinned ranges roll forward and are re-requested on every refresh tick.
func (s *Service) StreamCustomerUsage(ctx context.Context, req customerview.UsageRequest, emit func(customerview.Event) error) error {
	p, err := s.resolve(req)
	if err != nil {
		return err
	}
	log := logger.WithCustomer(logger.WithContext(ctx, s.log), p.customerID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan customerview.Event, 32)
	sess := s.newSession(p, events, ctx.Done())

	if err := emit(customerview.Event{Type: customerview.EventView, Data: sess.viewEvent()}); err != nil {
		return err
	}

	s.viewMetrics.StreamOpened()
	defer s.viewMetrics.StreamClosed()

	go sess.load(ctx)

	var tick <-chan time.Time
	if refresh := p.view.StreamRefresh; refresh > 0 && !p.pinned {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := emit(ev); err != nil {
				log.Debug("usage stream closed by client", zap.Error(err))
				return err
			}
		case <-tick:
			if sess.roll(ctx, s.clock.Now()) {
				if err := emit(customerview.Event{Type: customerview.EventView, Data: sess.viewEvent()}); err != nil {
					return err
				}
			}
		}
	}
}

// GetUpcomingCharge assembles a single subscription's card. A failed preview
// yields a card without preview rows; only the subscription lookup can fail the call.
func (s *Service) GetUpcomingCharge(ctx context.Context, req customerview.ChargeRequest) (chargepreview.Card, error) {
	subscriptionID := strings.TrimSpace(req.SubscriptionID)
	if subscriptionID == "" {
		return chargepreview.Card{}, customerview.ErrInvalidSubscription
	}
	localeRaw := strings.TrimSpace(req.Locale)
	if localeRaw == "" {
		localeRaw = s.views.Get().Locale
	}

	sub, err := s.client.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return chargepreview.Card{}, err
	}

	preview := loadstate.Empty[billingdomain.ChargePreview]()
	if state, _ := chargepreview.Decide(sub); state != chargepreview.DisplayHidden {
		data, err := s.client.GetChargePreview(ctx, sub.ID)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("charge preview unavailable",
				zap.String("subscription_id", sub.ID),
				zap.Error(err),
			)
			s.viewMetrics.RecordFetchFailure("charge_preview", err)
		}
		preview = loadstate.FromResult(data, err, nil)
	}

	card := chargepreview.Assemble(sub, preview, chargepreview.WithLocale(interval.ParseLocale(localeRaw)))
	s.viewMetrics.RecordChargeCard(card.State.String(), card.Preview.String())
	s.metrics.RecordViewAssembled(ctx, "upcoming_charge", true)
	return card, nil
}
