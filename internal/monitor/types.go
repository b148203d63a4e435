package monitor

import (
	"context"
	"time"

	"github.com/felitouuuu/Naruto-sub000/internal/pricefeed"
	"github.com/felitouuuu/Naruto-sub000/internal/storage"
	kit "github.com/felitouuuu/Naruto-sub000/internal/transport"
)

// SubscriptionStore is the slice of the persistence API the monitor needs:
// read enabled rows, and record successful dispatches.
type SubscriptionStore interface {
	ListEnabledSubscriptions(ctx context.Context) ([]storage.Subscription, error)
	UpdateLastDispatch(ctx context.Context, chatID int64, coin string, unixSeconds int64) error
}

// PriceSource returns a fresh quote for a coin, or an error when no usable
// price is available.
type PriceSource interface {
	Quote(ctx context.Context, coin string) (pricefeed.Quote, error)
}

// Resolver performs the two-stage destination resolution: chat lookup first,
// then the bot's ability to post inside it.
type Resolver interface {
	Resolve(ctx context.Context, chatID int64, threadID int) (kit.ChatTarget, error)
}

// Sink delivers a rendered post to a resolved destination.
type Sink interface {
	Send(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error
}

// Config controls the monitor service.
type Config struct {
	Enabled    bool
	PollPeriod time.Duration // tick period; default 1m
	RatePerSec int           // delivery pacing within a tick; default 1
}

// dispatchGroup batches the subscriptions sharing a coin so one tick performs
// one price lookup per distinct coin. Groups live for a single tick.
type dispatchGroup struct {
	coin string
	subs []storage.Subscription
}
