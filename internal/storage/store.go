package storage

import (
	"context"
)

// Store is the persistence API used by the monitor and the command handlers.
type Store interface {
	// Subscriptions.
	ListEnabledSubscriptions(ctx context.Context) ([]Subscription, error)
	ListChatSubscriptions(ctx context.Context, chatID int64) ([]Subscription, error)
	GetSubscription(ctx context.Context, chatID int64, coin string) (Subscription, bool, error)
	UpsertSubscription(ctx context.Context, sub Subscription) error
	SetSubscriptionEnabled(ctx context.Context, chatID int64, coin string, enabled bool) (bool, error)
	DeleteSubscription(ctx context.Context, chatID int64, coin string) (bool, error)
	UpdateLastDispatch(ctx context.Context, chatID int64, coin string, unixSeconds int64) error

	// Per-chat settings.
	GetChatPrefix(ctx context.Context, chatID int64) (string, error)
	SetChatPrefix(ctx context.Context, chatID int64, prefix string) error

	Close() error
}
