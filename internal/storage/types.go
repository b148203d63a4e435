package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Subscription is one chat's recurring price post for one coin.
// (chat_id, coin) is unique; upsert semantics are enforced at the store layer.
type Subscription struct {
	ChatID          int64
	Coin            string // coin identifier, stored lowercased
	IntervalMinutes int
	ThreadID        int   // forum topic thread id (0 = chat root)
	LastDispatch    int64 // epoch seconds of last successful post; 0 = never sent
	Enabled         bool
}

// ChatSettings holds per-chat command configuration.
type ChatSettings struct {
	ChatID int64
	Prefix string // custom command prefix; "" means slash commands only
}
