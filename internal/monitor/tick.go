package monitor

import (
	"context"
	"strings"

	"github.com/felitouuuu/Naruto-sub000/internal/pricefeed"
	"github.com/felitouuuu/Naruto-sub000/internal/storage"
	kit "github.com/felitouuuu/Naruto-sub000/internal/transport"
	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

// minIntervalSeconds is the defensive floor applied to stored intervals.
// The configuration command clamps to [30, 1440] minutes already; the monitor
// floors again so a malformed row cannot turn into a spam loop.
const minIntervalSeconds = 30 * 60

// tick runs one full evaluation pass: load, group, quote, deliver.
//
// Every external call is fault-isolated to its own unit of work: a failed
// store read ends the tick silently, a failed quote skips that coin's group,
// and a failed resolution/delivery skips that one subscription without
// touching its last-dispatch timestamp.
func (s *Service) tick(ctx context.Context) {
	subs, err := s.store.ListEnabledSubscriptions(ctx)
	if err != nil {
		s.log.Warn("subscription load failed", logx.Err(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	now := s.now().Unix()
	groups := groupByCoin(subs)
	s.log.Debug("tick loaded", logx.Int("subscriptions", len(subs)), logx.Int("groups", len(groups)))

	for _, g := range groups {
		if ctx.Err() != nil {
			return
		}
		quote, err := s.prices.Quote(ctx, g.coin)
		if err != nil {
			// One coin's feed failing must not affect the other groups.
			s.log.Warn("quote fetch failed; skipping group",
				logx.String("coin", g.coin), logx.Int("subscriptions", len(g.subs)), logx.Err(err))
			continue
		}

		for _, sub := range g.subs {
			if ctx.Err() != nil {
				return
			}
			if !due(now, sub) {
				continue
			}
			s.dispatch(ctx, now, sub, quote)
		}
	}
}

// groupByCoin partitions subscriptions by normalized coin id, preserving the
// insertion order of first-seen coins. Every subscription lands in exactly one
// group.
func groupByCoin(subs []storage.Subscription) []dispatchGroup {
	var groups []dispatchGroup
	index := map[string]int{}
	for _, sub := range subs {
		sub.Coin = strings.ToLower(strings.TrimSpace(sub.Coin))
		if sub.Coin == "" {
			continue
		}
		if sub.LastDispatch < 0 {
			sub.LastDispatch = 0
		}
		i, ok := index[sub.Coin]
		if !ok {
			i = len(groups)
			index[sub.Coin] = i
			groups = append(groups, dispatchGroup{coin: sub.Coin})
		}
		groups[i].subs = append(groups[i].subs, sub)
	}
	return groups
}

// due reports whether the interval has elapsed since the last successful
// dispatch. A zero last-dispatch ("never sent") is always due.
func due(nowSeconds int64, sub storage.Subscription) bool {
	effective := int64(sub.IntervalMinutes) * 60
	if effective < minIntervalSeconds {
		effective = minIntervalSeconds
	}
	return nowSeconds-sub.LastDispatch >= effective
}

// dispatch attempts one delivery. The last-dispatch timestamp is written only
// after the sink confirmed the send, so any earlier failure leaves the
// subscription due and retried next tick. A failed timestamp write after a
// confirmed send is logged and accepted: the next tick may post a duplicate
// (at-least-once, not exactly-once).
func (s *Service) dispatch(ctx context.Context, nowSeconds int64, sub storage.Subscription, quote pricefeed.Quote) {
	// Fixed pacing between successive deliveries within a tick.
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	target, err := s.resolver.Resolve(ctx, sub.ChatID, sub.ThreadID)
	if err != nil {
		s.log.Debug("destination unresolved; deferring",
			logx.Int64("chat_id", sub.ChatID), logx.String("coin", sub.Coin), logx.Err(err))
		return
	}

	text := renderPost(quote, sub)
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if err := s.sink.Send(ctx, target, text, opt); err != nil {
		s.log.Warn("delivery failed; deferring",
			logx.Int64("chat_id", sub.ChatID), logx.String("coin", sub.Coin), logx.Err(err))
		return
	}

	if err := s.store.UpdateLastDispatch(ctx, sub.ChatID, sub.Coin, nowSeconds); err != nil {
		s.log.Warn("last-dispatch update failed; post may repeat",
			logx.Int64("chat_id", sub.ChatID), logx.String("coin", sub.Coin), logx.Err(err))
	}
}
