package config

// Config is the full on-disk configuration.
//
// The file may be JSON or YAML (by extension); both are decoded strictly, so
// unknown keys are rejected rather than silently ignored.
//
// All duration fields are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Monitor   MonitorConfig   `json:"monitor"`
	Pricefeed PricefeedConfig `json:"pricefeed,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"
}

type LoggingConfig struct {
	Level   string            `json:"level"` // TRACE|DEBUG|INFO|WARN|ERROR
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the SQLite persistence layer.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MonitorConfig controls the periodic price-posting scheduler.
//
// Defaults (when fields are omitted/zero):
//   - enabled: true is NOT implied; set it explicitly
//   - poll_period: "1m"
//   - rate_per_sec: 1 (pause between successive deliveries within a tick)
type MonitorConfig struct {
	Enabled    bool   `json:"enabled"`
	PollPeriod string `json:"poll_period,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// PricefeedConfig controls the price-quote HTTP client.
type PricefeedConfig struct {
	BaseURL       string `json:"base_url,omitempty"`        // default: CoinGecko public API
	Timeout       string `json:"timeout,omitempty"`         // per-request timeout, default "10s"
	ChartCacheTTL string `json:"chart_cache_ttl,omitempty"` // default "2m"
}
