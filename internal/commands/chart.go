package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/felitouuuu/Naruto-sub000/internal/pricefeed"
)

// chartMaxSamples bounds the number of points embedded in the chart URL;
// QuickChart URLs have practical length limits.
const chartMaxSamples = 40

// chartURL builds a QuickChart line-chart URL from a price series.
func chartURL(coin string, days int, points []pricefeed.PricePoint) string {
	sampled := samplePoints(points, chartMaxSamples)

	labels := make([]string, 0, len(sampled))
	values := make([]string, 0, len(sampled))
	for _, p := range sampled {
		if days <= 1 {
			labels = append(labels, p.Time.UTC().Format("15:04"))
		} else {
			labels = append(labels, p.Time.UTC().Format("01-02"))
		}
		values = append(values, p.Price.StringFixed(4))
	}

	cfg := map[string]any{
		"type": "line",
		"data": map[string]any{
			"labels": labels,
			"datasets": []map[string]any{{
				"label":       fmt.Sprintf("%s (USD, %dd)", strings.ToUpper(coin), days),
				"data":        json.RawMessage("[" + strings.Join(values, ",") + "]"),
				"fill":        false,
				"borderColor": "rgb(75,192,192)",
				"pointRadius": 0,
			}},
		},
		"options": map[string]any{
			"legend": map[string]any{"display": true},
		},
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return "https://quickchart.io/chart?c=" + url.QueryEscape(string(b))
}

// samplePoints thins a series to at most n points, always keeping the last one.
func samplePoints(points []pricefeed.PricePoint, n int) []pricefeed.PricePoint {
	if n <= 0 || len(points) <= n {
		return points
	}
	step := float64(len(points)-1) / float64(n-1)
	out := make([]pricefeed.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, points[int(float64(i)*step+0.5)])
	}
	out[n-1] = points[len(points)-1]
	return out
}
