package usagewindow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type gatedFetcher struct {
	mu        sync.Mutex
	gates     map[int64]chan struct{}
	responses map[int64]billingdomain.UsageQuantities
	failures  map[int64]error
	calls     atomic.Int32
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:     make(map[int64]chan struct{}),
		responses: make(map[int64]billingdomain.UsageQuantities),
		failures:  make(map[int64]error),
	}
}

func (f *gatedFetcher) gate(start time.Time) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := start.UnixNano()
	ch, ok := f.gates[key]
	if !ok {
		ch = make(chan struct{})
		f.gates[key] = ch
	}
	return ch
}

func (f *gatedFetcher) respond(start time.Time, total float64) {
	f.mu.Lock()
	f.responses[start.UnixNano()] = billingdomain.UsageQuantities{
		Quantities: []billingdomain.UsageQuantityPoint{{Timestamp: start, Quantity: total}},
		Total:      total,
	}
	f.mu.Unlock()
	close(f.gate(start))
}

func (f *gatedFetcher) fail(start time.Time, err error) {
	f.mu.Lock()
	f.failures[start.UnixNano()] = err
	f.mu.Unlock()
	close(f.gate(start))
}

func (f *gatedFetcher) GetUsageQuantities(ctx context.Context, req billingdomain.UsageQuantitiesRequest) (billingdomain.UsageQuantities, error) {
	f.calls.Add(1)
	select {
	case <-f.gate(req.Start):
	case <-ctx.Done():
		return billingdomain.UsageQuantities{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[req.Start.UnixNano()]; err != nil {
		return billingdomain.UsageQuantities{}, err
	}
	return f.responses[req.Start.UnixNano()], nil
}

type countingRecorder struct {
	resolved atomic.Int32
	stale    atomic.Int32
}

func (r *countingRecorder) RecordWindowResolved(string) { r.resolved.Add(1) }
func (r *countingRecorder) RecordWindowStale()          { r.stale.Add(1) }

func newTestTracker(t *testing.T, f Fetcher, opts ...TrackerOption) *Tracker {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewTracker(f, node, zap.NewNop(), opts...)
}

func waitTracker(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Wait(ctx))
}

func query(start time.Time) Query {
	return Query{
		MeterID:    "meter_1",
		CustomerID: "cus_1",
		Range:      Range{Start: start, End: start.Add(7 * 24 * time.Hour)},
		Interval:   billingdomain.IntervalDay,
	}
}

func TestTrackerDiscardsResponseOfSupersededRequest(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)

	fetcher := newGatedFetcher()
	rec := &countingRecorder{}
	resolved := make(chan Resolution, 4)
	tr := newTestTracker(t, fetcher, WithRecorder(rec), WithNotify(func(r Resolution) { resolved <- r }))

	ticketA, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	ticketB, err := tr.Request(context.Background(), query(d2))
	require.NoError(t, err)
	assert.NotEqual(t, ticketA, ticketB)
	assert.True(t, tr.State("meter_1").IsLoading())

	fetcher.respond(d2, 20)
	select {
	case r := <-resolved:
		assert.Equal(t, ticketB, r.Ticket)
	case <-time.After(2 * time.Second):
		t.Fatalf("window B never resolved")
	}

	// A arrives late and must not overwrite B.
	fetcher.respond(d1, 10)
	waitTracker(t, tr)

	series, ok := tr.State("meter_1").Data()
	require.True(t, ok)
	assert.Equal(t, 20.0, series.Total)
	assert.True(t, series.Range.Start.Equal(d2))
	assert.Equal(t, int32(1), rec.stale.Load())
	assert.Equal(t, int32(1), rec.resolved.Load())
	assert.Empty(t, resolved)
}

func TestTrackerDiscardsOlderResponseArrivingFirst(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)

	fetcher := newGatedFetcher()
	tr := newTestTracker(t, fetcher)

	_, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	_, err = tr.Request(context.Background(), query(d2))
	require.NoError(t, err)

	fetcher.respond(d1, 10)
	fetcher.respond(d2, 20)
	waitTracker(t, tr)

	series, ok := tr.State("meter_1").Data()
	require.True(t, ok)
	assert.Equal(t, 20.0, series.Total)
}

func TestTrackerSameKeyIsNotReissued(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	fetcher := newGatedFetcher()
	tr := newTestTracker(t, fetcher)

	first, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	second, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fetcher.respond(d1, 3)
	waitTracker(t, tr)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.True(t, tr.State("meter_1").IsReady())
}

func TestTrackerFailedWindowCanBeRetried(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	fetcher := newGatedFetcher()
	tr := newTestTracker(t, fetcher)

	boom := errors.New("boom")
	first, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	fetcher.fail(d1, boom)
	waitTracker(t, tr)

	state := tr.State("meter_1")
	require.True(t, state.IsFailed())
	assert.ErrorIs(t, state.Err(), boom)

	fetcher.mu.Lock()
	delete(fetcher.failures, d1.UnixNano())
	fetcher.responses[d1.UnixNano()] = billingdomain.UsageQuantities{Total: 1}
	fetcher.mu.Unlock()

	second, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	waitTracker(t, tr)

	series, ok := tr.State("meter_1").Data()
	require.True(t, ok)
	assert.Equal(t, 1.0, series.Total)
	assert.NotNil(t, series.Quantities)
}

func TestTrackerForgetDropsLateResponse(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	fetcher := newGatedFetcher()
	rec := &countingRecorder{}
	tr := newTestTracker(t, fetcher, WithRecorder(rec))

	_, err := tr.Request(context.Background(), query(d1))
	require.NoError(t, err)
	tr.Forget("meter_1")

	fetcher.respond(d1, 5)
	waitTracker(t, tr)

	_, tracked := tr.Current("meter_1")
	assert.False(t, tracked)
	assert.Empty(t, tr.States())
	assert.Equal(t, int32(1), rec.stale.Load())
}

func TestTrackerKeepsMetersIndependent(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	fetcher := newGatedFetcher()
	tr := newTestTracker(t, fetcher)

	q1 := query(d1)
	q2 := query(d1)
	q2.MeterID = "meter_2"

	_, err := tr.Request(context.Background(), q1)
	require.NoError(t, err)
	_, err = tr.Request(context.Background(), q2)
	require.NoError(t, err)

	fetcher.respond(d1, 9)
	waitTracker(t, tr)

	states := tr.States()
	require.Len(t, states, 2)
	assert.Equal(t, loadstate.StatusReady, states["meter_1"].Status())
	assert.Equal(t, loadstate.StatusReady, states["meter_2"].Status())
}

func TestTrackerRejectsInvalidQuery(t *testing.T) {
	tr := newTestTracker(t, newGatedFetcher())

	_, err := tr.Request(context.Background(), Query{CustomerID: "cus_1"})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidMeter)

	q := query(time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC))
	q.Range.End = q.Range.Start.Add(-time.Hour)
	_, err = tr.Request(context.Background(), q)
	assert.ErrorIs(t, err, billingdomain.ErrInvalidRange)
}

func TestTrackerUnknownMeterReportsLoading(t *testing.T) {
	tr := newTestTracker(t, newGatedFetcher())
	assert.True(t, tr.State("nope").IsLoading())
}

func TestTrackerSharedFetchSurvivesOtherViewCancel(t *testing.T) {
	d1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	fetcher := newGatedFetcher()
	group := &singleflight.Group{}
	viewA := newTestTracker(t, fetcher, WithGroup(group))
	viewB := newTestTracker(t, fetcher, WithGroup(group))

	ctxA, cancelA := context.WithCancel(context.Background())
	_, err := viewA.Request(ctxA, query(d1))
	require.NoError(t, err)
	_, err = viewB.Request(context.Background(), query(d1))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancelA()
	require.Eventually(t, func() bool { return viewA.State("meter_1").IsFailed() }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, viewA.State("meter_1").Err(), context.Canceled)

	fetcher.respond(d1, 7)
	waitTracker(t, viewA)
	waitTracker(t, viewB)

	series, ok := viewB.State("meter_1").Data()
	require.True(t, ok, "view B must not inherit view A's cancellation")
	assert.Equal(t, 7.0, series.Total)
	assert.True(t, viewA.State("meter_1").IsFailed())
}
