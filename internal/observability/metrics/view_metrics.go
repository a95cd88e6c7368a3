package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
)

const (
	FetchReasonDeadlineExceeded    = "deadline_exceeded"
	FetchReasonCanceled            = "canceled"
	FetchReasonNotFound            = "not_found"
	FetchReasonUnauthorized        = "unauthorized"
	FetchReasonInvalidPayload      = "invalid_payload"
	FetchReasonUpstreamUnavailable = "upstream_unavailable"
	FetchReasonUnknown             = "unknown"
)

const (
	CacheResultHit  = "hit"
	CacheResultMiss = "miss"
)

// ViewMetrics captures how customer usage views settle. Exposed on /metrics.
type ViewMetrics struct {
	windowsResolved *prometheus.CounterVec
	windowsStale    prometheus.Counter
	chargeCards     *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	streamClients   prometheus.Gauge
}

var (
	viewMetricsOnce sync.Once
	viewMetrics     *ViewMetrics
)

// View returns the singleton view metrics registered on the default registerer.
func View() *ViewMetrics {
	return ViewWithConfig(Config{})
}

// ViewWithConfig returns the singleton view metrics using config labels.
func ViewWithConfig(cfg Config) *ViewMetrics {
	viewMetricsOnce.Do(func() {
		viewMetrics = newViewMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return viewMetrics
}

func newViewMetrics(registerer prometheus.Registerer, cfg Config) *ViewMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "chargeview"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &ViewMetrics{
		windowsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chargeview_usage_windows_resolved_total",
			Help:        "Usage windows applied to a view by final status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		windowsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "chargeview_usage_windows_stale_total",
			Help:        "Usage window responses dropped because a newer request superseded them.",
			ConstLabels: constLabels,
		}),
		chargeCards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chargeview_charge_cards_total",
			Help:        "Charge cards assembled by display state and preview status.",
			ConstLabels: constLabels,
		}, []string{"state", "preview"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chargeview_fetch_failures_total",
			Help:        "Upstream fetches absorbed into failed view sections.",
			ConstLabels: constLabels,
		}, []string{"source", "reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chargeview_cache_lookups_total",
			Help:        "Billing API cache lookups by source and result.",
			ConstLabels: constLabels,
		}, []string{"source", "result"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "chargeview_stream_clients",
			Help:        "Open usage stream connections.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.windowsResolved,
		m.windowsStale,
		m.chargeCards,
		m.fetchFailures,
		m.cacheLookups,
		m.streamClients,
	)
	return m
}

func (m *ViewMetrics) RecordWindowResolved(status string) {
	if m == nil {
		return
	}
	m.windowsResolved.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *ViewMetrics) RecordWindowStale() {
	if m == nil {
		return
	}
	m.windowsStale.Inc()
}

func (m *ViewMetrics) RecordChargeCard(state, preview string) {
	if m == nil {
		return
	}
	m.chargeCards.WithLabelValues(normalizeLabel(state), normalizeLabel(preview)).Inc()
}

func (m *ViewMetrics) RecordFetchFailure(source string, err error) {
	if m == nil || err == nil {
		return
	}
	m.fetchFailures.WithLabelValues(normalizeLabel(source), ClassifyFetchReason(err)).Inc()
}

func (m *ViewMetrics) RecordCacheLookup(source string, hit bool) {
	if m == nil {
		return
	}
	result := CacheResultMiss
	if hit {
		result = CacheResultHit
	}
	m.cacheLookups.WithLabelValues(normalizeLabel(source), result).Inc()
}

func (m *ViewMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

func (m *ViewMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}

// ClassifyFetchReason maps a fetch error to a low-cardinality label.
func ClassifyFetchReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return FetchReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return FetchReasonCanceled
	case errors.Is(err, billingdomain.ErrNotFound):
		return FetchReasonNotFound
	case errors.Is(err, billingdomain.ErrUnauthorized):
		return FetchReasonUnauthorized
	case errors.Is(err, billingdomain.ErrInvalidPayload):
		return FetchReasonInvalidPayload
	case errors.Is(err, billingdomain.ErrUpstreamUnavailable):
		return FetchReasonUpstreamUnavailable
	default:
		return FetchReasonUnknown
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
