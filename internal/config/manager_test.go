package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const yamlConfig = `
telegram:
  token: "123:abc"
  poll_timeout: "15s"
logging:
  level: DEBUG
  console: true
  file:
    enabled: true
    path: ./bot.log
storage:
  path: ./data/bot.db
  busy_timeout: "5s"
monitor:
  enabled: true
  poll_period: "1m"
  rate_per_sec: 1
pricefeed:
  timeout: "8s"
  chart_cache_ttl: "2m"
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", yamlConfig))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.File.Enabled {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.PollPeriod != "1m" {
		t.Fatalf("monitor = %+v", cfg.Monitor)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram":{"token":"t"},"logging":{"level":"INFO","console":true,"file":{"enabled":false}},"storage":{"path":"./x.db"},"monitor":{"enabled":false}}`))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "./x.db" {
		t.Fatalf("storage path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", yamlConfig+"\nbogus_key: 1\n"))

	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown key must be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram":{"token":"t"},"logging":{"level":"INFO","console":true,"file":{"enabled":false}},"storage":{"path":"x"},"monitor":{"enabled":false}} {"extra":true}`))

	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing JSON must be rejected")
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("subscriber did not receive the config")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(cfg)
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	old := &Config{Telegram: TelegramConfig{Token: "old"}}
	latest := &Config{Telegram: TelegramConfig{Token: "new"}}
	m.publish(old)
	m.publish(latest)

	got := <-ch
	if got.Telegram.Token != "new" {
		t.Fatalf("token = %q, want new (latest wins)", got.Telegram.Token)
	}
}

func TestHashConfigStable(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "t"}}
	b := &Config{Telegram: TelegramConfig{Token: "t"}}
	c := &Config{Telegram: TelegramConfig{Token: "other"}}

	if hashConfig(a) != hashConfig(b) {
		t.Fatal("equal configs must hash equal")
	}
	if hashConfig(a) == hashConfig(c) {
		t.Fatal("different configs should hash differently")
	}
	if hashConfig(nil) != 0 {
		t.Fatal("nil config hashes to 0")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"10s", 10 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"-1s", 0, true},
		{"banana", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("test.field", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("f", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("empty → default: got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("f", "5s", time.Minute); err != nil || d != 5*time.Second {
		t.Fatalf("explicit wins: got %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("f", "junk", time.Minute); err == nil {
		t.Fatal("invalid duration must error")
	}
}
