package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
	return c, srv
}

func TestQuoteParsesResponse(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids = %q, want bitcoin", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":64000.12,"usd_24h_change":-1.2345,"last_updated_at":1700000000}}`))
	}))

	q, err := c.Quote(context.Background(), "Bitcoin")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Coin != "bitcoin" {
		t.Fatalf("coin = %q", q.Coin)
	}
	if q.PriceUSD.StringFixed(2) != "64000.12" {
		t.Fatalf("price = %s", q.PriceUSD)
	}
	if q.Change24h == nil || q.Change24h.StringFixed(4) != "-1.2345" {
		t.Fatalf("change = %v", q.Change24h)
	}
	if !q.UpdatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("updated at = %v", q.UpdatedAt)
	}
}

func TestQuoteMissingChangeIsNil(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dogecoin":{"usd":0.1}}`))
	}))

	q, err := c.Quote(context.Background(), "dogecoin")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Change24h != nil {
		t.Fatalf("expected nil change, got %v", q.Change24h)
	}
	if !q.UpdatedAt.IsZero() {
		t.Fatalf("expected zero UpdatedAt, got %v", q.UpdatedAt)
	}
}

func TestQuoteUnknownCoinUnavailable(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.Quote(context.Background(), "madeupcoin")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestQuoteRetriesTransientFailure(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":64000}}`))
	}))

	q, err := c.Quote(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.PriceUSD.IsZero() {
		t.Fatal("expected a price after retry")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestQuoteContextCancelStopsRetry(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Quote(ctx, "bitcoin")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMarketChartParsesSeries(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,64000.1],[1700003600000,64100.2]]}`))
	}))

	points, err := c.MarketChart(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("MarketChart: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if !points[0].Time.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("time = %v", points[0].Time)
	}
	if points[1].Price.StringFixed(1) != "64100.2" {
		t.Fatalf("price = %s", points[1].Price)
	}
}

func TestMarketChartEmptySeriesUnavailable(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prices":[]}`))
	}))

	_, err := c.MarketChart(context.Background(), "bitcoin", 7)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
