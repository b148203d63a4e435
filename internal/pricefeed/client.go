package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Client fetches price quotes and historical series from a CoinGecko-style API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logx.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type simplePriceEntry struct {
	USD          decimal.Decimal  `json:"usd"`
	USDChange24h *decimal.Decimal `json:"usd_24h_change"`
	LastUpdated  int64            `json:"last_updated_at"`
}

// Quote fetches the current USD price for a coin id (e.g. "bitcoin").
// It retries transient failures with exponential backoff, honoring ctx.
func (c *Client) Quote(ctx context.Context, coin string) (Quote, error) {
	coin = strings.ToLower(strings.TrimSpace(coin))
	if coin == "" {
		return Quote{}, ErrUnavailable
	}

	q := url.Values{}
	q.Set("ids", coin)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_last_updated_at", "true")
	u := c.baseURL + "/simple/price?" + q.Encode()

	var out map[string]simplePriceEntry
	if err := c.getJSON(ctx, u, &out); err != nil {
		return Quote{}, err
	}

	entry, ok := out[coin]
	if !ok || entry.USD.IsZero() {
		return Quote{}, ErrUnavailable
	}

	quote := Quote{
		Coin:      coin,
		PriceUSD:  entry.USD,
		Change24h: entry.USDChange24h,
	}
	if entry.LastUpdated > 0 {
		quote.UpdatedAt = time.Unix(entry.LastUpdated, 0)
	}
	return quote, nil
}

type marketChartResponse struct {
	Prices [][2]decimal.Decimal `json:"prices"`
}

// MarketChart fetches the USD price series for the last `days` days.
func (c *Client) MarketChart(ctx context.Context, coin string, days int) ([]PricePoint, error) {
	coin = strings.ToLower(strings.TrimSpace(coin))
	if coin == "" {
		return nil, ErrUnavailable
	}
	if days <= 0 {
		days = 7
	}

	u := c.baseURL + "/coins/" + url.PathEscape(coin) + "/market_chart?vs_currency=usd&days=" + strconv.Itoa(days)

	var out marketChartResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	if len(out.Prices) == 0 {
		return nil, ErrUnavailable
	}

	points := make([]PricePoint, 0, len(out.Prices))
	for _, p := range out.Prices {
		ms := p[0].IntPart()
		points = append(points, PricePoint{
			Time:  time.UnixMilli(ms),
			Price: p[1],
		})
	}
	return points, nil
}

const fetchAttempts = 3

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	var lastErr error
	for i := 0; i < fetchAttempts; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s.
			delay := time.Duration(1<<uint(i-1)) * time.Second
			c.log.Debug("retrying price fetch", logx.Int("attempt", i), logx.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := c.doOnce(ctx, u, out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("price api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
