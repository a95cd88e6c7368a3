package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	customerviewdomain "github.com/smallbiznis/chargeview/internal/customerview/domain"
	obscontext "github.com/smallbiznis/chargeview/internal/observability/context"
	"go.uber.org/zap"
)

const defaultStreamHeartbeat = 15 * time.Second

func (s *Server) GetCustomerUsage(c *gin.Context) {
	req, ok := s.usageRequest(c)
	if !ok {
		return
	}

	resp, err := s.usageSvc.GetCustomerUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// StreamCustomerUsage pushes the view as server-sent events: one "view" event up
// front, then meters, window and charge events as each source resolves.
func (s *Server) StreamCustomerUsage(c *gin.Context) {
	req, ok := s.usageRequest(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream := &eventStream{w: c.Writer, flusher: flusher}
	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		stream.keepAlive(ctx, s.heartbeatInterval())
	}()

	err := s.usageSvc.StreamCustomerUsage(ctx, req, stream.send)
	cancel()
	<-heartbeatDone

	if err == nil || c.Request.Context().Err() != nil {
		return
	}
	if !stream.opened() {
		AbortWithError(c, err)
		return
	}
	s.log.Debug("usage stream closed", zap.String("customer_id", req.CustomerID), zap.Error(err))
}

func (s *Server) GetUpcomingCharge(c *gin.Context) {
	subscriptionID := strings.TrimSpace(c.Param("id"))
	if subscriptionID == "" {
		AbortWithError(c, newValidationError("subscription_id", "invalid_subscription", "subscription id is required"))
		return
	}

	card, err := s.usageSvc.GetUpcomingCharge(c.Request.Context(), customerviewdomain.ChargeRequest{
		SubscriptionID: subscriptionID,
		Locale:         requestLocale(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": card})
}

func (s *Server) usageRequest(c *gin.Context) (customerviewdomain.UsageRequest, bool) {
	orgID := strings.TrimSpace(c.Param("org_id"))
	customerID := strings.TrimSpace(c.Param("customer_id"))

	start, err := parseOptionalTime(c.Query("start"), false)
	if err != nil {
		AbortWithError(c, newValidationError("start", "invalid_start", "start must be RFC3339 or YYYY-MM-DD"))
		return customerviewdomain.UsageRequest{}, false
	}
	end, err := parseOptionalTime(c.Query("end"), true)
	if err != nil {
		AbortWithError(c, newValidationError("end", "invalid_end", "end must be RFC3339 or YYYY-MM-DD"))
		return customerviewdomain.UsageRequest{}, false
	}

	ctx := obscontext.WithOrgID(c.Request.Context(), orgID)
	ctx = obscontext.WithCustomerID(ctx, customerID)
	c.Request = c.Request.WithContext(ctx)

	return customerviewdomain.UsageRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Start:          start,
		End:            end,
		Interval:       strings.ToLower(strings.TrimSpace(c.Query("interval"))),
		Locale:         requestLocale(c),
	}, true
}

// requestLocale prefers the explicit query parameter over Accept-Language.
func requestLocale(c *gin.Context) string {
	if locale := strings.TrimSpace(c.Query("locale")); locale != "" {
		return locale
	}
	return strings.TrimSpace(c.GetHeader("Accept-Language"))
}

func (s *Server) heartbeatInterval() time.Duration {
	if s.views == nil {
		return defaultStreamHeartbeat
	}
	if d := s.views.Get().StreamHeartbeat; d > 0 {
		return d
	}
	return defaultStreamHeartbeat
}

// eventStream serializes writes from the view and the heartbeat. Headers go out
// with the first event so that request errors can still be answered as JSON.
type eventStream struct {
	mu      sync.Mutex
	w       gin.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *eventStream) opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *eventStream) start() error {
	headers := s.w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true

	_, err := io.WriteString(s.w, "retry: 2000\n\n")
	return err
}

func (s *eventStream) send(event customerviewdomain.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		if err := s.start(); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) keepAlive(ctx context.Context, every time.Duration) {
	heartbeat := time.NewTicker(every)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			s.mu.Lock()
			if s.started {
				if _, err := io.WriteString(s.w, ": heartbeat\n\n"); err == nil {
					s.flusher.Flush()
				}
			}
			s.mu.Unlock()
		}
	}
}
