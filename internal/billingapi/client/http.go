// Package client talks to the upstream billing API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/observability/tracing"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultPageSize   = 100
	defaultMaxPages   = 20
	maxErrorBody      = 4 << 10

	defaultMeterSorting = "meter_name"
)

// Config points the client at a billing API deployment.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	PageSize   int
	MaxPages   int
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Token = strings.TrimSpace(c.Token)
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	return c
}

// UpstreamRecorder observes each billing API attempt.
type UpstreamRecorder interface {
	RecordUpstreamRequest(ctx context.Context, operation string, statusCode int, elapsed time.Duration)
}

// HTTPClient implements billingdomain.Client over the billing API's REST surface.
type HTTPClient struct {
	cfg      Config
	http     *http.Client
	log      *zap.Logger
	recorder UpstreamRecorder
	backOff  func() backoff.BackOff
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(h *HTTPClient) {
		if log != nil {
			h.log = log
		}
	}
}

func WithRecorder(r UpstreamRecorder) Option {
	return func(h *HTTPClient) {
		h.recorder = r
	}
}

// WithBackOff overrides the retry schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(h *HTTPClient) {
		if fn != nil {
			h.backOff = fn
		}
	}
}

func NewHTTPClient(cfg Config, opts ...Option) *HTTPClient {
	cfg = cfg.withDefaults()
	h := &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  zap.NewNop(),
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.http = tracing.WrapHTTPClient(h.http)
	return h
}

var _ billingdomain.Client = (*HTTPClient)(nil)

type pagination struct {
	TotalCount int `json:"total_count"`
	MaxPage    int `json:"max_page"`
}

type listResource[T any] struct {
	Items      []T        `json:"items"`
	Pagination pagination `json:"pagination"`
}

type customerMeterPayload struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer_id"`
	MeterID       string              `json:"meter_id"`
	ConsumedUnits float64             `json:"consumed_units"`
	CreditedUnits float64             `json:"credited_units"`
	Balance       float64             `json:"balance"`
	Meter         billingdomain.Meter `json:"meter"`
}

func (p customerMeterPayload) toDomain() billingdomain.CustomerMeter {
	return billingdomain.CustomerMeter{
		ID:            p.ID,
		CustomerID:    p.CustomerID,
		MeterID:       p.MeterID,
		MeterName:     p.Meter.Name,
		ConsumedUnits: p.ConsumedUnits,
		CreditedUnits: p.CreditedUnits,
		Balance:       p.Balance,
	}
}

func (h *HTTPClient) ListCustomerMeters(ctx context.Context, req billingdomain.ListCustomerMetersRequest) ([]billingdomain.CustomerMeter, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, billingdomain.ErrInvalidCustomer
	}
	query := url.Values{}
	setIfPresent(query, "organization_id", req.OrganizationID)
	query.Set("customer_id", strings.TrimSpace(req.CustomerID))
	sorting := req.Sorting
	if len(sorting) == 0 {
		sorting = []string{defaultMeterSorting}
	}
	for _, s := range sorting {
		query.Add("sorting", s)
	}

	payloads, err := listAll[customerMeterPayload](ctx, h, "list_customer_meters", "/v1/customer-meters/", query)
	if err != nil {
		return nil, err
	}
	items := make([]billingdomain.CustomerMeter, 0, len(payloads))
	for _, p := range payloads {
		items = append(items, p.toDomain())
	}
	if err := billingdomain.ValidateCustomerMeters(items); err != nil {
		return nil, err
	}
	return items, nil
}

func (h *HTTPClient) ListSubscriptions(ctx context.Context, req billingdomain.ListSubscriptionsRequest) ([]billingdomain.Subscription, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, billingdomain.ErrInvalidCustomer
	}
	query := url.Values{}
	setIfPresent(query, "organization_id", req.OrganizationID)
	query.Set("customer_id", strings.TrimSpace(req.CustomerID))
	if req.Active != nil {
		query.Set("active", strconv.FormatBool(*req.Active))
	}

	items, err := listAll[billingdomain.Subscription](ctx, h, "list_subscriptions", "/v1/subscriptions/", query)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []billingdomain.Subscription{}
	}
	if err := billingdomain.ValidateSubscriptions(items); err != nil {
		return nil, err
	}
	return items, nil
}

func (h *HTTPClient) GetSubscription(ctx context.Context, subscriptionID string) (billingdomain.Subscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return billingdomain.Subscription{}, billingdomain.ErrInvalidSubscription
	}
	var sub billingdomain.Subscription
	if err := h.get(ctx, "get_subscription", "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, &sub); err != nil {
		return billingdomain.Subscription{}, err
	}
	if err := billingdomain.ValidateSubscription(sub); err != nil {
		return billingdomain.Subscription{}, err
	}
	return sub, nil
}

func (h *HTTPClient) GetUsageQuantities(ctx context.Context, req billingdomain.UsageQuantitiesRequest) (billingdomain.UsageQuantities, error) {
	switch {
	case strings.TrimSpace(req.MeterID) == "":
		return billingdomain.UsageQuantities{}, billingdomain.ErrInvalidMeter
	case strings.TrimSpace(req.CustomerID) == "":
		return billingdomain.UsageQuantities{}, billingdomain.ErrInvalidCustomer
	case req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start):
		return billingdomain.UsageQuantities{}, billingdomain.ErrInvalidRange
	}
	interval, err := billingdomain.ParseInterval(string(req.Interval))
	if err != nil {
		return billingdomain.UsageQuantities{}, err
	}

	query := url.Values{}
	query.Set("customer_id", strings.TrimSpace(req.CustomerID))
	query.Set("start_timestamp", req.Start.UTC().Format(time.RFC3339Nano))
	query.Set("end_timestamp", req.End.UTC().Format(time.RFC3339Nano))
	query.Set("interval", string(interval))

	var out billingdomain.UsageQuantities
	path := "/v1/meters/" + url.PathEscape(strings.TrimSpace(req.MeterID)) + "/quantities"
	if err := h.get(ctx, "get_usage_quantities", path, query, &out); err != nil {
		return billingdomain.UsageQuantities{}, err
	}
	if out.Quantities == nil {
		out.Quantities = []billingdomain.UsageQuantityPoint{}
	}
	if err := billingdomain.ValidateUsageQuantities(out); err != nil {
		return billingdomain.UsageQuantities{}, err
	}
	return out, nil
}

func (h *HTTPClient) GetChargePreview(ctx context.Context, subscriptionID string) (billingdomain.ChargePreview, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return billingdomain.ChargePreview{}, billingdomain.ErrInvalidSubscription
	}
	var out billingdomain.ChargePreview
	path := "/v1/subscriptions/" + url.PathEscape(subscriptionID) + "/charge-preview"
	if err := h.get(ctx, "get_charge_preview", path, nil, &out); err != nil {
		return billingdomain.ChargePreview{}, err
	}
	if err := billingdomain.ValidateChargePreview(out); err != nil {
		return billingdomain.ChargePreview{}, err
	}
	return out, nil
}

// listAll walks page/limit pagination until the last page or the configured page cap.
func listAll[T any](ctx context.Context, h *HTTPClient, operation, path string, query url.Values) ([]T, error) {
	var items []T
	for page := 1; page <= h.cfg.MaxPages; page++ {
		q := cloneValues(query)
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(h.cfg.PageSize))

		var resource listResource[T]
		if err := h.get(ctx, operation, path, q, &resource); err != nil {
			return nil, err
		}
		items = append(items, resource.Items...)

		if page >= resource.Pagination.MaxPage || len(resource.Items) == 0 {
			return items, nil
		}
		if page == h.cfg.MaxPages {
			h.log.Warn("billing api listing truncated",
				zap.String("operation", operation),
				zap.Int("max_pages", h.cfg.MaxPages),
				zap.Int("upstream_max_page", resource.Pagination.MaxPage),
			)
		}
	}
	return items, nil
}

func (h *HTTPClient) get(ctx context.Context, operation, path string, query url.Values, out any) error {
	endpoint := h.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	maxTries := uint(h.cfg.MaxRetries) + 1
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, h.do(ctx, operation, endpoint, out)
	},
		backoff.WithBackOff(h.backOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			h.log.Debug("retrying billing api call",
				zap.String("operation", operation),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", billingdomain.ErrUpstreamUnavailable, operation, err)
}

func (h *HTTPClient) do(ctx context.Context, operation, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if h.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.Token)
	}

	start := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		h.record(ctx, operation, 0, time.Since(start))
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()
	h.record(ctx, operation, resp.StatusCode, time.Since(start))

	if err := statusError(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %s: decode: %v", billingdomain.ErrInvalidPayload, operation, err))
	}
	return nil
}

func (h *HTTPClient) record(ctx context.Context, operation string, status int, elapsed time.Duration) {
	if h.recorder == nil {
		return
	}
	h.recorder.RecordUpstreamRequest(ctx, operation, status, elapsed)
}

type apiError struct {
	Error  string `json:"error"`
	Detail any    `json:"detail"`
}

// statusError classifies non-2xx responses. Throttling and server errors are retried.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(body))
	var parsed apiError
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		message = parsed.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(billingdomain.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(billingdomain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			return backoff.RetryAfter(seconds)
		}
		return fmt.Errorf("%w: status %d", billingdomain.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", billingdomain.ErrUpstreamUnavailable, resp.StatusCode, message)
	default:
		return backoff.Permanent(fmt.Errorf("billing api status %d: %s", resp.StatusCode, message))
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		billingdomain.ErrUnauthorized,
		billingdomain.ErrNotFound,
		billingdomain.ErrInvalidPayload,
		billingdomain.ErrUpstreamUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func setIfPresent(values url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		values.Set(key, value)
	}
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}
