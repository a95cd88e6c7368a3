package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/chargeview/internal/observability/context"
	"github.com/smallbiznis/chargeview/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	require.Error(t, err)
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithCustomerID(ctx, "cus_1")
	ctx = correlation.ContextWithCorrelationID(ctx, "01HZX")

	WithContext(ctx, zap.New(core)).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "cus_1", fields["customer_id"])
	assert.Equal(t, "01HZX", fields["correlation_id"])
	assert.Equal(t, "", fields["trace_id"])
}

func TestGinMiddlewarePropagatesIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))

	var seenOrg, seenCustomer, seenRequest string
	r.GET("/v1/organizations/:org_id/customers/:customer_id/usage", func(c *gin.Context) {
		ctx := c.Request.Context()
		seenOrg = obscontext.OrgIDFromContext(ctx)
		seenCustomer = obscontext.CustomerIDFromContext(ctx)
		seenRequest = obscontext.RequestIDFromContext(ctx)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/organizations/org_1/customers/cus_1/usage", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "org_1", seenOrg)
	assert.Equal(t, "cus_1", seenCustomer)
	assert.Equal(t, "req-42", seenRequest)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderCorrelationID))
}
