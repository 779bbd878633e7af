package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/webtest/storage"
	"github.com/use-agent/webtest/telemetry"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(store, telemetry.NewRecorder("test"), Config{
		FastTTL:              time.Hour,
		DurableRetention:     7 * 24 * time.Hour,
		DriftThresholdPct:    35.0,
		SPADriftThresholdPct: 75.0,
	})
}

func TestCache_MissThenSaveThenHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	sess := SessionContext{URL: "https://app.example.com/page"}

	if _, ok := c.Get(ctx, "https://app.example.com/page", "submit", "click", "", "", sess); ok {
		t.Fatal("expected miss on empty cache")
	}

	err := c.Save(ctx, "https://app.example.com/page", "submit", "click", "", Entry{
		Selector: `button[aria-label="Submit"]`,
		Strategy: "aria-label",
		Stable:   true,
	}, "digest-a", sess)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entry, ok := c.Get(ctx, "https://app.example.com/page", "submit", "click", "", "digest-a", sess)
	if !ok {
		t.Fatal("expected hit after save")
	}
	if entry.Selector != `button[aria-label="Submit"]` {
		t.Errorf("Selector = %q, want button[aria-label=\"Submit\"]", entry.Selector)
	}
}

func TestCache_VolatileSelectorRejected(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	sess := SessionContext{URL: "https://app.example.com/page"}

	err := c.Save(ctx, "https://app.example.com/page", "submit", "click", "", Entry{
		Selector: "#input-339",
		Strategy: "id-class",
		Stable:   false,
	}, "digest-a", sess)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, ok := c.Get(ctx, "https://app.example.com/page", "submit", "click", "", "digest-a", sess); ok {
		t.Fatal("volatile selector should not be cached")
	}
}

func TestCache_DriftInvalidates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	sess := SessionContext{URL: "https://app.example.com/page"}

	err := c.Save(ctx, "https://app.example.com/page", "submit", "click", "", Entry{
		Selector: `button[aria-label="Submit"]`,
		Strategy: "aria-label",
		Stable:   true,
	}, "0000000000000000000000000000000000000000", sess)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A digest that differs in every character position drifts well past
	// the 35% threshold.
	if _, ok := c.Get(ctx, "https://app.example.com/page", "submit", "click", "", "ffffffffffffffffffffffffffffffffffffffff", sess); ok {
		t.Fatal("expected drift to invalidate the cached entry")
	}

	if _, ok := c.Get(ctx, "https://app.example.com/page", "submit", "click", "", "0000000000000000000000000000000000000000", sess); ok {
		t.Fatal("entry should have been invalidated by the prior drift check")
	}
}

func TestCache_UnknownElementMissesRepeatedly(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	sess := SessionContext{URL: "https://app.example.com/page"}

	err := c.Save(ctx, "https://app.example.com/page", "submit", "click", "", Entry{
		Selector: `button[aria-label="Submit"]`,
		Strategy: "aria-label",
		Stable:   true,
	}, "", sess)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A differing element name has no row in either tier, so every call
	// misses; the miss-count update finds no row to count against, and the
	// saved "submit" entry is not touched.
	for i := 0; i < 2; i++ {
		if _, ok := c.Get(ctx, "https://app.example.com/page", "nonexistent", "click", "", "", sess); ok {
			t.Fatalf("round %d: expected miss for nonexistent element", i)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://app.com/users/123", "https://app.com/users/%"},
		{"https://app.com/page?id=5", "https://app.com/page%"},
		{"https://app.com/static", "https://app.com/static%"},
	}

	for _, tt := range tests {
		if got := normalizeURL(tt.url); got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
