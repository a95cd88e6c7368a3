// Package context carries request-scoped identifiers used by logs and traces.
package context

import (
	"context"
	"strings"
)

type (
	requestIDKey  struct{}
	orgIDKey      struct{}
	customerIDKey struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return valueOf(ctx, requestIDKey{})
}

func WithOrgID(ctx context.Context, id string) context.Context {
	return withValue(ctx, orgIDKey{}, id)
}

func OrgIDFromContext(ctx context.Context) string {
	return valueOf(ctx, orgIDKey{})
}

func WithCustomerID(ctx context.Context, id string) context.Context {
	return withValue(ctx, customerIDKey{}, id)
}

func CustomerIDFromContext(ctx context.Context) string {
	return valueOf(ctx, customerIDKey{})
}

func withValue(ctx context.Context, key any, value string) context.Context {
	value = strings.TrimSpace(value)
	if ctx == nil || value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
