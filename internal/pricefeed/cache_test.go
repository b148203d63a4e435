package pricefeed

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestChartCacheMemoizes(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,64000]]}`))
	}))

	base := time.Unix(1_700_000_000, 0)
	now := base
	cache := NewChartCache(c, time.Minute)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := cache.MarketChart(ctx, "bitcoin", 7); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := cache.MarketChart(ctx, "bitcoin", 7); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	// Different day span is a separate entry.
	if _, err := cache.MarketChart(ctx, "bitcoin", 30); err != nil {
		t.Fatalf("other span: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}

	// Past the TTL the entry is refetched.
	now = base.Add(time.Minute + time.Second)
	if _, err := cache.MarketChart(ctx, "bitcoin", 7); err != nil {
		t.Fatalf("expired fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestChartCacheDoesNotCacheErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"prices":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,64000]]}`))
	}))

	cache := NewChartCache(c, time.Minute)
	ctx := context.Background()

	if _, err := cache.MarketChart(ctx, "bitcoin", 7); err == nil {
		t.Fatal("expected error for empty series")
	}
	points, err := cache.MarketChart(ctx, "bitcoin", 7)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
}
