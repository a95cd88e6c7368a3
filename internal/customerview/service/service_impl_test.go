package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/billingapi/mocks"
	"github.com/smallbiznis/chargeview/internal/chargepreview"
	"github.com/smallbiznis/chargeview/internal/clock"
	"github.com/smallbiznis/chargeview/internal/config"
	customerview "github.com/smallbiznis/chargeview/internal/customerview/domain"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, client billingdomain.Client, mutate func(*config.ViewConfig)) (*Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	view := config.DefaultViewConfig()
	view.SettleTimeout = 2 * time.Second
	view.StreamRefresh = 0
	if mutate != nil {
		mutate(&view)
	}
	fake := clock.NewFakeClock(testNow)
	svc := NewService(Params{
		Client: client,
		Log:    zap.NewNop(),
		Clock:  fake,
		GenID:  node,
		Views:  config.NewStaticViewConfigHolder(view),
	})
	return svc.(*Service), fake
}

func periodEnd() *time.Time {
	v := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	return &v
}

func activeSubscription() billingdomain.Subscription {
	return billingdomain.Subscription{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		Status:           billingdomain.SubscriptionStatusActive,
		CurrentPeriodEnd: periodEnd(),
		Amount:           2000,
		Currency:         "usd",
		Product:          billingdomain.Product{ID: "prod_1", Name: "Pro"},
		Prices:           []billingdomain.Price{{ID: "price_1", AmountType: billingdomain.AmountTypeFixed}},
		Meters: []billingdomain.SubscriptionMeter{
			{ID: "sm_1", MeterID: "m_api", Amount: 350, Meter: billingdomain.Meter{ID: "m_api", Name: "API Calls"}},
		},
	}
}

func customerMeters() []billingdomain.CustomerMeter {
	return []billingdomain.CustomerMeter{
		{ID: "cm_1", CustomerID: "cus_1", MeterID: "m_api", MeterName: "API Calls"},
		{ID: "cm_2", CustomerID: "cus_1", MeterID: "m_storage", MeterName: "Storage"},
	}
}

func TestGetCustomerUsageJoinsAllSections(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	client.EXPECT().ListCustomerMeters(gomock.Any(), billingdomain.ListCustomerMetersRequest{
		OrganizationID: "org_1",
		CustomerID:     "cus_1",
		Sorting:        []string{"meter_name"},
	}).Return(customerMeters(), nil)
	client.EXPECT().ListSubscriptions(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req billingdomain.ListSubscriptionsRequest) ([]billingdomain.Subscription, error) {
			require.NotNil(t, req.Active)
			assert.True(t, *req.Active)
			return []billingdomain.Subscription{activeSubscription()}, nil
		})
	client.EXPECT().GetUsageQuantities(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req billingdomain.UsageQuantitiesRequest) (billingdomain.UsageQuantities, error) {
			assert.Equal(t, billingdomain.IntervalDay, req.Interval)
			assert.Equal(t, testNow.AddDate(0, 0, -7), req.Start)
			return billingdomain.UsageQuantities{
				Quantities: []billingdomain.UsageQuantityPoint{{Timestamp: req.Start, Quantity: 2}},
				Total:      2,
			}, nil
		}).Times(2)
	client.EXPECT().GetChargePreview(gomock.Any(), "sub_1").Return(billingdomain.ChargePreview{
		SubtotalAmount: 2350,
		TotalAmount:    2350,
	}, nil)

	out, err := svc.GetCustomerUsage(context.Background(), customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"})
	require.NoError(t, err)

	assert.False(t, out.Loading)
	assert.True(t, out.HasMeters)
	assert.Equal(t, "Mar 3 – 10", out.RangeLabel)

	meters, ok := out.Meters.Data()
	require.True(t, ok)
	require.Len(t, meters, 2)
	require.NotNil(t, meters[0].Subscription)
	assert.Equal(t, "sub_1", meters[0].Subscription.ID)
	assert.Nil(t, meters[1].Subscription)
	for _, m := range meters {
		series, ok := m.Usage.Data()
		require.True(t, ok)
		assert.Equal(t, 2.0, series.Total)
	}

	cards, ok := out.Charges.Data()
	require.True(t, ok)
	require.Len(t, cards, 1)
	assert.Equal(t, chargepreview.DisplayActive, cards[0].State)
	assert.Equal(t, loadstate.StatusReady, cards[0].Preview)
	last := cards[0].Rows[len(cards[0].Rows)-1]
	assert.Equal(t, "Estimated Total", last.Label)
}

func TestGetCustomerUsageAbsorbsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	boom := errors.New("boom")
	client.EXPECT().ListCustomerMeters(gomock.Any(), gomock.Any()).Return(customerMeters()[:1], nil)
	client.EXPECT().ListSubscriptions(gomock.Any(), gomock.Any()).Return(nil, billingdomain.ErrUpstreamUnavailable)
	client.EXPECT().GetUsageQuantities(gomock.Any(), gomock.Any()).Return(billingdomain.UsageQuantities{}, boom)

	out, err := svc.GetCustomerUsage(context.Background(), customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"})
	require.NoError(t, err)

	assert.False(t, out.Loading)
	assert.True(t, out.Charges.IsFailed())

	meters, ok := out.Meters.Data()
	require.True(t, ok)
	require.Len(t, meters, 1)
	assert.Nil(t, meters[0].Subscription)
	assert.True(t, meters[0].Usage.IsFailed())
	assert.ErrorIs(t, meters[0].Usage.Err(), boom)
}

func TestGetCustomerUsageWithoutMeters(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	sub := activeSubscription()
	sub.Meters = nil
	sub.Prices = []billingdomain.Price{{ID: "price_free", AmountType: billingdomain.AmountTypeFree}}

	client.EXPECT().ListCustomerMeters(gomock.Any(), gomock.Any()).Return([]billingdomain.CustomerMeter{}, nil)
	client.EXPECT().ListSubscriptions(gomock.Any(), gomock.Any()).Return([]billingdomain.Subscription{sub}, nil)

	out, err := svc.GetCustomerUsage(context.Background(), customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"})
	require.NoError(t, err)

	assert.False(t, out.HasMeters)
	assert.False(t, out.Loading)
	assert.Equal(t, loadstate.StatusEmpty, out.Meters.Status())

	cards, ok := out.Charges.Data()
	require.True(t, ok)
	assert.Empty(t, cards)
}

func TestGetCustomerUsageReportsLoadingAfterSettleTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, func(v *config.ViewConfig) {
		v.SettleTimeout = 50 * time.Millisecond
	})

	release := make(chan struct{})
	defer close(release)

	client.EXPECT().ListCustomerMeters(gomock.Any(), gomock.Any()).Return(customerMeters()[:1], nil)
	client.EXPECT().ListSubscriptions(gomock.Any(), gomock.Any()).Return([]billingdomain.Subscription{activeSubscription()}, nil)
	client.EXPECT().GetUsageQuantities(gomock.Any(), gomock.Any()).Return(billingdomain.UsageQuantities{Total: 1}, nil)
	client.EXPECT().GetChargePreview(gomock.Any(), "sub_1").DoAndReturn(
		func(ctx context.Context, _ string) (billingdomain.ChargePreview, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return billingdomain.ChargePreview{}, context.Canceled
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := svc.GetCustomerUsage(ctx, customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"})
	require.NoError(t, err)

	assert.True(t, out.Loading)
	cards, ok := out.Charges.Data()
	require.True(t, ok)
	require.Len(t, cards, 1)
	assert.True(t, cards[0].Loading)
	assert.Equal(t, chargepreview.RowLoading, cards[0].Rows[len(cards[0].Rows)-1].Kind)
}

func TestGetCustomerUsageRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.GetCustomerUsage(ctx, customerview.UsageRequest{CustomerID: "cus_1"})
	assert.ErrorIs(t, err, customerview.ErrInvalidOrganization)

	_, err = svc.GetCustomerUsage(ctx, customerview.UsageRequest{OrganizationID: "org_1"})
	assert.ErrorIs(t, err, customerview.ErrInvalidCustomer)

	_, err = svc.GetCustomerUsage(ctx, customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1", Interval: "fortnight"})
	assert.ErrorIs(t, err, customerview.ErrInvalidInterval)

	start := testNow
	end := testNow.Add(-time.Hour)
	_, err = svc.GetCustomerUsage(ctx, customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1", Start: &start, End: &end})
	assert.ErrorIs(t, err, customerview.ErrInvalidRange)
}

func TestGetUpcomingCharge(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	sub := activeSubscription()
	sub.CancelAtPeriodEnd = true
	client.EXPECT().GetSubscription(gomock.Any(), "sub_1").Return(sub, nil)
	client.EXPECT().GetChargePreview(gomock.Any(), "sub_1").Return(billingdomain.ChargePreview{
		SubtotalAmount: 2350,
		DiscountAmount: 350,
		TotalAmount:    2000,
	}, nil)

	card, err := svc.GetUpcomingCharge(context.Background(), customerview.ChargeRequest{SubscriptionID: "sub_1"})
	require.NoError(t, err)
	assert.Equal(t, chargepreview.DisplayCanceling, card.State)
	require.NotNil(t, card.Header)
	assert.Equal(t, "Final Charge", card.Header.Title)
	assert.Equal(t, "Estimated Final Charge", card.Rows[len(card.Rows)-1].Label)
}

func TestGetUpcomingChargeHiddenSkipsPreview(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	sub := activeSubscription()
	sub.Status = billingdomain.SubscriptionStatusCanceled
	client.EXPECT().GetSubscription(gomock.Any(), "sub_1").Return(sub, nil)

	card, err := svc.GetUpcomingCharge(context.Background(), customerview.ChargeRequest{SubscriptionID: "sub_1"})
	require.NoError(t, err)
	assert.False(t, card.Visible())
	assert.Equal(t, chargepreview.HiddenReasonStatus, card.HiddenReason)
}

func TestGetUpcomingChargeFailedPreviewKeepsCard(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	client.EXPECT().GetSubscription(gomock.Any(), "sub_1").Return(activeSubscription(), nil)
	client.EXPECT().GetChargePreview(gomock.Any(), "sub_1").Return(billingdomain.ChargePreview{}, billingdomain.ErrUpstreamUnavailable)

	card, err := svc.GetUpcomingCharge(context.Background(), customerview.ChargeRequest{SubscriptionID: "sub_1"})
	require.NoError(t, err)
	assert.True(t, card.Visible())
	assert.Equal(t, loadstate.StatusFailed, card.Preview)
	for _, row := range card.Rows {
		assert.NotEqual(t, chargepreview.RowTotal, row.Kind)
	}
}

func TestGetUpcomingChargeLookupErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	_, err := svc.GetUpcomingCharge(context.Background(), customerview.ChargeRequest{})
	assert.ErrorIs(t, err, customerview.ErrInvalidSubscription)

	client.EXPECT().GetSubscription(gomock.Any(), "sub_x").Return(billingdomain.Subscription{}, billingdomain.ErrNotFound)
	_, err = svc.GetUpcomingCharge(context.Background(), customerview.ChargeRequest{SubscriptionID: "sub_x"})
	assert.ErrorIs(t, err, billingdomain.ErrNotFound)
}

type eventLog struct {
	mu     sync.Mutex
	events []customerview.Event
}

func (l *eventLog) add(ev customerview.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) ofType(typ customerview.EventType) []customerview.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []customerview.Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestStreamCustomerUsageEmitsSections(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	client.EXPECT().ListCustomerMeters(gomock.Any(), gomock.Any()).Return(customerMeters()[:1], nil)
	client.EXPECT().ListSubscriptions(gomock.Any(), gomock.Any()).Return([]billingdomain.Subscription{activeSubscription()}, nil)
	client.EXPECT().GetUsageQuantities(gomock.Any(), gomock.Any()).Return(billingdomain.UsageQuantities{Total: 7}, nil)
	client.EXPECT().GetChargePreview(gomock.Any(), "sub_1").Return(billingdomain.ChargePreview{TotalAmount: 2350, SubtotalAmount: 2350}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &eventLog{}
	errc := make(chan error, 1)
	go func() {
		errc <- svc.StreamCustomerUsage(ctx, customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"}, func(ev customerview.Event) error {
			log.add(ev)
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		windows := log.ofType(customerview.EventWindow)
		charges := log.ofType(customerview.EventCharge)
		if len(windows) != 1 || len(charges) != 2 {
			return false
		}
		card := charges[1].Data.(chargepreview.Card)
		return card.Preview == loadstate.StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	views := log.ofType(customerview.EventView)
	require.Len(t, views, 1)
	assert.Equal(t, "cus_1", views[0].Data.(customerview.ViewEvent).CustomerID)

	window := log.ofType(customerview.EventWindow)[0].Data.(customerview.WindowEvent)
	assert.Equal(t, "m_api", window.MeterID)
	series, ok := window.Usage.Data()
	require.True(t, ok)
	assert.Equal(t, 7.0, series.Total)

	first := log.ofType(customerview.EventCharge)[0].Data.(chargepreview.Card)
	assert.True(t, first.Loading)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}
}

func TestStreamCustomerUsageStopsWhenEmitFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, _ := newTestService(t, client, nil)

	gone := errors.New("client gone")
	err := svc.StreamCustomerUsage(context.Background(), customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"}, func(customerview.Event) error {
		return gone
	})
	assert.ErrorIs(t, err, gone)
}

func TestSessionRollRequestsNewWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	svc, fake := newTestService(t, client, nil)

	var mu sync.Mutex
	var starts []time.Time
	client.EXPECT().GetUsageQuantities(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req billingdomain.UsageQuantitiesRequest) (billingdomain.UsageQuantities, error) {
			mu.Lock()
			starts = append(starts, req.Start)
			mu.Unlock()
			return billingdomain.UsageQuantities{Total: 1}, nil
		}).Times(2)

	p, err := svc.resolve(customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1"})
	require.NoError(t, err)
	sess := svc.newSession(p, nil, nil)
	sess.meters = loadstate.Ready(customerMeters()[:1])

	sess.requestWindows(context.Background(), p.rng)
	require.NoError(t, sess.tracker.Wait(context.Background()))

	fake.Advance(time.Hour)
	assert.True(t, sess.roll(context.Background(), fake.Now()))
	require.NoError(t, sess.tracker.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 2)
	assert.Equal(t, time.Hour, starts[1].Sub(starts[0]))

	key, ok := sess.tracker.Current("m_api")
	require.True(t, ok)
	assert.Equal(t, testNow.Add(time.Hour).AddDate(0, 0, -7).UnixNano(), key.Start)
}

func TestSessionPinnedRangeDoesNotRoll(t *testing.T) {
	svc, fake := newTestService(t, nil, nil)
	start := testNow.AddDate(0, 0, -3)
	p, err := svc.resolve(customerview.UsageRequest{OrganizationID: "org_1", CustomerID: "cus_1", Start: &start})
	require.NoError(t, err)

	sess := svc.newSession(p, nil, nil)
	assert.False(t, sess.roll(context.Background(), fake.Now()))
}
