package usagewindow

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher issues usage quantity requests. billingdomain.Client satisfies it.
type Fetcher interface {
	GetUsageQuantities(ctx context.Context, req billingdomain.UsageQuantitiesRequest) (billingdomain.UsageQuantities, error)
}

// Recorder observes window outcomes.
type Recorder interface {
	RecordWindowResolved(status string)
	RecordWindowStale()
}

// Resolution is delivered to the notify hook each time a meter's current window settles.
type Resolution struct {
	MeterID string
	Ticket  snowflake.ID
	State   loadstate.State[Series]
}

type window struct {
	key    Key
	ticket snowflake.ID
	state  loadstate.State[Series]
}

// Tracker holds the latest window per meter. A response is applied only if its
// ticket is still the meter's current ticket; anything older is dropped.
type Tracker struct {
	fetcher  Fetcher
	node     *snowflake.Node
	log      *zap.Logger
	group    *singleflight.Group
	recorder Recorder
	notify   func(Resolution)

	mu       sync.Mutex
	windows  map[string]*window
	inflight sync.WaitGroup
}

type TrackerOption func(*Tracker)

// WithGroup shares upstream request collapsing between trackers.
func WithGroup(group *singleflight.Group) TrackerOption {
	return func(t *Tracker) {
		if group != nil {
			t.group = group
		}
	}
}

func WithRecorder(r Recorder) TrackerOption {
	return func(t *Tracker) {
		t.recorder = r
	}
}

// WithNotify registers fn for every applied resolution. fn may be called concurrently.
func WithNotify(fn func(Resolution)) TrackerOption {
	return func(t *Tracker) {
		t.notify = fn
	}
}

func NewTracker(fetcher Fetcher, node *snowflake.Node, log *zap.Logger, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		fetcher: fetcher,
		node:    node,
		log:     log.Named("usagewindow.tracker"),
		group:   &singleflight.Group{},
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request makes q the meter's current window and fetches it in the background.
// Requesting the key that is already current (and not failed) is a no-op that
// returns the existing ticket.
func (t *Tracker) Request(ctx context.Context, q Query) (snowflake.ID, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	key := q.Key()

	t.mu.Lock()
	if w, ok := t.windows[q.MeterID]; ok && w.key == key && !w.state.IsFailed() {
		t.mu.Unlock()
		return w.ticket, nil
	}
	ticket := t.node.Generate()
	t.windows[q.MeterID] = &window{key: key, ticket: ticket, state: loadstate.Loading[Series]()}
	t.inflight.Add(1)
	t.mu.Unlock()

	go t.run(ctx, q, ticket)
	return ticket, nil
}

func (t *Tracker) run(ctx context.Context, q Query, ticket snowflake.ID) {
	defer t.inflight.Done()

	// The flight may be shared with other views, so it must outlive this caller.
	flight := context.WithoutCancel(ctx)
	ch := t.group.DoChan(q.flightKey(), func() (any, error) {
		return t.fetcher.GetUsageQuantities(flight, q.request())
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		t.resolve(q.MeterID, ticket, loadstate.Failed[Series](ctx.Err()))
		return
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		t.log.Debug("usage window fetch failed",
			zap.String("meter_id", q.MeterID),
			zap.Int64("ticket", ticket.Int64()),
			zap.Error(err),
		)
		t.resolve(q.MeterID, ticket, loadstate.Failed[Series](err))
		return
	}

	quantities := v.(billingdomain.UsageQuantities)
	series := Series{
		MeterID:    q.MeterID,
		Range:      q.Range,
		Interval:   q.interval(),
		Quantities: quantities.Quantities,
		Total:      quantities.Total,
	}
	if series.Quantities == nil {
		series.Quantities = []billingdomain.UsageQuantityPoint{}
	}
	if shared {
		t.log.Debug("usage window shared upstream call", zap.String("meter_id", q.MeterID))
	}
	t.resolve(q.MeterID, ticket, loadstate.Ready(series))
}

// resolve applies state if ticket is still current and reports whether it did.
func (t *Tracker) resolve(meterID string, ticket snowflake.ID, state loadstate.State[Series]) bool {
	t.mu.Lock()
	w, ok := t.windows[meterID]
	if !ok || w.ticket != ticket {
		t.mu.Unlock()
		t.log.Debug("discarding stale usage window",
			zap.String("meter_id", meterID),
			zap.Int64("ticket", ticket.Int64()),
		)
		if t.recorder != nil {
			t.recorder.RecordWindowStale()
		}
		return false
	}
	w.state = state
	notify := t.notify
	t.mu.Unlock()

	if t.recorder != nil {
		t.recorder.RecordWindowResolved(state.Status().String())
	}
	if notify != nil {
		notify(Resolution{MeterID: meterID, Ticket: ticket, State: state})
	}
	return true
}

// State returns the meter's current window state. Unknown meters report Loading.
func (t *Tracker) State(meterID string) loadstate.State[Series] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.windows[meterID]; ok {
		return w.state
	}
	return loadstate.Loading[Series]()
}

// States snapshots every tracked meter.
func (t *Tracker) States() map[string]loadstate.State[Series] {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]loadstate.State[Series], len(t.windows))
	for meterID, w := range t.windows {
		out[meterID] = w.state
	}
	return out
}

// Current returns the key of the meter's latest request.
func (t *Tracker) Current(meterID string) (Key, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[meterID]
	if !ok {
		return Key{}, false
	}
	return w.key, true
}

// Forget stops tracking meterID; responses still in flight for it are discarded.
func (t *Tracker) Forget(meterID string) {
	t.mu.Lock()
	delete(t.windows, meterID)
	t.mu.Unlock()
}

// Wait blocks until every issued request has returned or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
