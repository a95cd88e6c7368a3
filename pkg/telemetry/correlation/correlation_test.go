package correlation

import (
	"context"
	"net/http"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestEnsureCorrelationIDGeneratesULID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	if _, err := ulid.ParseStrict(cid); err != nil {
		t.Fatalf("expected a ulid, got %q: %v", cid, err)
	}
	if got := ExtractCorrelationID(ctx); got != cid {
		t.Fatalf("expected %q on context, got %q", cid, got)
	}
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "upstream-id")
	_, cid := EnsureCorrelationID(ctx)
	if cid != "upstream-id" {
		t.Fatalf("expected existing id to be kept, got %q", cid)
	}
}

func TestSetHeader(t *testing.T) {
	h := http.Header{}
	SetHeader(context.Background(), h)
	if h.Get(Header) != "" {
		t.Fatalf("expected no header without a correlation id")
	}

	SetHeader(ContextWithCorrelationID(context.Background(), "abc"), h)
	if got := h.Get(Header); got != "abc" {
		t.Fatalf("expected header abc, got %q", got)
	}
}
