package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the SQLite database and applies migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const subscriptionCols = `chat_id, coin, interval_minutes, thread_id, last_dispatch, enabled`

func (s *sqliteStore) ListEnabledSubscriptions(ctx context.Context) ([]Subscription, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE enabled = 1 ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *sqliteStore) ListChatSubscriptions(ctx context.Context, chatID int64) ([]Subscription, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE chat_id = ? ORDER BY coin`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]Subscription, error) {
	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var (
		sub     Subscription
		last    sql.NullInt64
		enabled int
	)
	err := row.Scan(&sub.ChatID, &sub.Coin, &sub.IntervalMinutes, &sub.ThreadID, &last, &enabled)
	if err != nil {
		return Subscription{}, err
	}
	if last.Valid {
		sub.LastDispatch = last.Int64
	}
	sub.Enabled = enabled != 0
	return sub, nil
}

func (s *sqliteStore) GetSubscription(ctx context.Context, chatID int64, coin string) (Subscription, bool, error) {
	if s == nil || s.db == nil {
		return Subscription{}, false, ErrClosed
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE chat_id = ? AND coin = ?`,
		chatID, normCoin(coin))
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	return sub, true, nil
}

// UpsertSubscription inserts or updates the (chat, coin) subscription.
// An update keeps the existing last_dispatch so a reconfigured subscription
// does not immediately re-post.
func (s *sqliteStore) UpsertSubscription(ctx context.Context, sub Subscription) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	var last any
	if sub.LastDispatch > 0 {
		last = sub.LastDispatch
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(chat_id, coin, interval_minutes, thread_id, last_dispatch, enabled)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(chat_id, coin) DO UPDATE SET
		   interval_minutes = excluded.interval_minutes,
		   thread_id        = excluded.thread_id,
		   enabled          = excluded.enabled`,
		sub.ChatID, normCoin(sub.Coin), sub.IntervalMinutes, sub.ThreadID, last, boolInt(sub.Enabled))
	return err
}

func (s *sqliteStore) SetSubscriptionEnabled(ctx context.Context, chatID int64, coin string, enabled bool) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET enabled = ? WHERE chat_id = ? AND coin = ?`,
		boolInt(enabled), chatID, normCoin(coin))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) DeleteSubscription(ctx context.Context, chatID int64, coin string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND coin = ?`, chatID, normCoin(coin))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) UpdateLastDispatch(ctx context.Context, chatID int64, coin string, unixSeconds int64) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_dispatch = ? WHERE chat_id = ? AND coin = ?`,
		unixSeconds, chatID, normCoin(coin))
	return err
}

func (s *sqliteStore) GetChatPrefix(ctx context.Context, chatID int64) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrClosed
	}
	var prefix string
	err := s.db.QueryRowContext(ctx,
		`SELECT prefix FROM chat_settings WHERE chat_id = ?`, chatID).Scan(&prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prefix, nil
}

func (s *sqliteStore) SetChatPrefix(ctx context.Context, chatID int64, prefix string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_settings(chat_id, prefix) VALUES(?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET prefix=excluded.prefix`,
		chatID, prefix)
	return err
}

func normCoin(coin string) string {
	return strings.ToLower(strings.TrimSpace(coin))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
