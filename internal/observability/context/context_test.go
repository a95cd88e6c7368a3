package context

import (
	"context"
	"testing"
)

func TestIdentifiersRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithOrgID(ctx, "org_1")
	ctx = WithCustomerID(ctx, "cus_1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected request id req-1, got %q", got)
	}
	if got := OrgIDFromContext(ctx); got != "org_1" {
		t.Fatalf("expected org id org_1, got %q", got)
	}
	if got := CustomerIDFromContext(ctx); got != "cus_1" {
		t.Fatalf("expected customer id cus_1, got %q", got)
	}
}

func TestBlankValuesAreNotStored(t *testing.T) {
	ctx := WithOrgID(context.Background(), "  ")
	if got := OrgIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty org id, got %q", got)
	}
}
