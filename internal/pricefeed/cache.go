package pricefeed

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// ChartCache memoizes MarketChart results for a short TTL.
//
// The periodic monitor never uses this; quotes there are fetched fresh every
// tick. The cache only serves the on-demand chart command, where repeated
// requests for the same coin inside a minute or two are common.
type ChartCache struct {
	client *Client
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]chartEntry

	now func() time.Time // test hook
}

type chartEntry struct {
	points  []PricePoint
	fetched time.Time
}

func NewChartCache(client *Client, ttl time.Duration) *ChartCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ChartCache{
		client:  client,
		ttl:     ttl,
		entries: map[string]chartEntry{},
		now:     time.Now,
	}
}

func (c *ChartCache) MarketChart(ctx context.Context, coin string, days int) ([]PricePoint, error) {
	key := coin + "/" + strconv.Itoa(days)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Sub(e.fetched) < c.ttl {
		c.mu.Unlock()
		return e.points, nil
	}
	c.mu.Unlock()

	points, err := c.client.MarketChart(ctx, coin, days)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = chartEntry{points: points, fetched: now}
	// Opportunistic cleanup of expired entries.
	for k, e := range c.entries {
		if now.Sub(e.fetched) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	return points, nil
}
