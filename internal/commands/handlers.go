package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felitouuuu/Naruto-sub000/internal/monitor"
	"github.com/felitouuuu/Naruto-sub000/internal/storage"
	kit "github.com/felitouuuu/Naruto-sub000/internal/transport"
	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
	"github.com/felitouuuu/Naruto-sub000/pkg/tgui"
)

// Interval bounds enforced by the configuration command. The monitor floors
// again defensively, but clamping belongs here, at creation time.
const (
	minIntervalMinutes     = 30
	maxIntervalMinutes     = 1440
	defaultIntervalMinutes = 60
)

const maxPrefixLen = 3

func (r *Router) cmdHelp(ctx context.Context, msg *kit.Message) {
	parts := []tgui.H{
		tgui.B("Crypto price bot"),
		tgui.Esc("price <coin> — current price"),
		tgui.Esc("chart <coin> [days] — price chart"),
		tgui.Esc("watch <coin> [minutes] — post the price periodically (30–1440m)"),
		tgui.Esc("unwatch <coin> — stop posting"),
		tgui.Esc("pause <coin> / resume <coin> — toggle a watch without losing it"),
		tgui.Esc("watchlist — active watches in this chat"),
		tgui.Esc("setprefix <p>|none — custom command prefix"),
		tgui.I("coin ids follow CoinGecko, e.g. bitcoin, ethereum, dogecoin"),
	}
	r.reply(ctx, msg, tgui.JoinH("\n", parts...).String())
}

func (r *Router) cmdPrice(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) < 1 {
		r.reply(ctx, msg, tgui.Esc("usage: price <coin>").String())
		return
	}
	coin := strings.ToLower(args[0])

	quote, err := r.prices.Quote(ctx, coin)
	if err != nil {
		r.log.Warn("quote failed", logx.String("coin", coin), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("no price available for "+coin).String())
		return
	}

	lines := []tgui.H{
		tgui.B("💰 " + strings.ToUpper(quote.Coin)),
		tgui.Line("Price", tgui.Code("$"+monitor.FormatPrice(quote.PriceUSD))),
		tgui.Line("24h", tgui.Esc(monitor.FormatChange(quote.Change24h))),
	}
	if !quote.UpdatedAt.IsZero() {
		lines = append(lines, tgui.Line("Updated", tgui.Esc(quote.UpdatedAt.UTC().Format(time.RFC3339))))
	}
	r.reply(ctx, msg, tgui.JoinH("\n", lines...).String())
}

func (r *Router) cmdChart(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) < 1 {
		r.reply(ctx, msg, tgui.Esc("usage: chart <coin> [days]").String())
		return
	}
	coin := strings.ToLower(args[0])
	days := 7
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n >= 1 && n <= 365 {
			days = n
		}
	}

	points, err := r.charts.MarketChart(ctx, coin, days)
	if err != nil {
		r.log.Warn("chart fetch failed", logx.String("coin", coin), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("no chart data for "+coin).String())
		return
	}

	url := chartURL(coin, days, points)
	body := tgui.JoinH("\n",
		tgui.B(fmt.Sprintf("📈 %s — %dd", strings.ToUpper(coin), days)),
		tgui.Link("open chart", url),
	)
	r.reply(ctx, msg, body.String())
}

func (r *Router) cmdWatch(ctx context.Context, msg *kit.Message, args []string) {
	if !r.requireAdmin(ctx, msg) {
		r.reply(ctx, msg, tgui.Esc("only chat admins can manage watches").String())
		return
	}
	if len(args) < 1 {
		r.reply(ctx, msg, tgui.Esc("usage: watch <coin> [minutes]").String())
		return
	}
	coin := strings.ToLower(args[0])
	interval := defaultIntervalMinutes
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			r.reply(ctx, msg, tgui.Esc("interval must be a number of minutes").String())
			return
		}
		interval = clampInterval(n)
	}

	// Verify the coin id before persisting so typos fail loudly here instead
	// of silently never posting.
	if _, err := r.prices.Quote(ctx, coin); err != nil {
		r.reply(ctx, msg, tgui.Esc("unknown coin id: "+coin).String())
		return
	}

	_, existed, err := r.store.GetSubscription(ctx, msg.ChatID, coin)
	if err != nil {
		r.log.Error("watch lookup failed", logx.Int64("chat_id", msg.ChatID), logx.String("coin", coin), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("could not save the watch, try again").String())
		return
	}

	sub := storage.Subscription{
		ChatID:          msg.ChatID,
		Coin:            coin,
		IntervalMinutes: interval,
		ThreadID:        msg.ThreadID,
		Enabled:         true,
	}
	if err := r.store.UpsertSubscription(ctx, sub); err != nil {
		r.log.Error("watch upsert failed", logx.Int64("chat_id", msg.ChatID), logx.String("coin", coin), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("could not save the watch, try again").String())
		return
	}
	verb := "✅ watching"
	if existed {
		verb = "🔁 updated watch for"
	}
	r.reply(ctx, msg, tgui.JoinH(" ",
		tgui.Esc(verb), tgui.B(coin), tgui.Esc(fmt.Sprintf("every %dm", interval))).String())
}

// setWatchEnabled backs the pause/resume commands. The subscription row stays
// in place so resuming keeps the interval, thread and last-dispatch clock.
func (r *Router) setWatchEnabled(ctx context.Context, msg *kit.Message, args []string, enabled bool) {
	verb := "pause"
	if enabled {
		verb = "resume"
	}
	if !r.requireAdmin(ctx, msg) {
		r.reply(ctx, msg, tgui.Esc("only chat admins can manage watches").String())
		return
	}
	if len(args) < 1 {
		r.reply(ctx, msg, tgui.Esc("usage: "+verb+" <coin>").String())
		return
	}
	coin := strings.ToLower(args[0])

	ok, err := r.store.SetSubscriptionEnabled(ctx, msg.ChatID, coin, enabled)
	if err != nil {
		r.log.Error(verb+" failed", logx.Int64("chat_id", msg.ChatID), logx.String("coin", coin), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("could not update the watch, try again").String())
		return
	}
	if !ok {
		r.reply(ctx, msg, tgui.Esc("no watch for "+coin+" in this chat").String())
		return
	}
	if enabled {
		r.reply(ctx, msg, tgui.JoinH(" ", tgui.Esc("▶️ resumed"), tgui.B(coin)).String())
		return
	}
	r.reply(ctx, msg, tgui.JoinH(" ", tgui.Esc("⏸ paused"), tgui.B(coin)).String())
}

func (r *Router) cmdUnwatch(ctx context.Context, msg *kit.Message, args []string) {
	if !r.requireAdmin(ctx, msg) {
		r.reply(ctx, msg, tgui.Esc("only chat admins can manage watches").String())
		return
	}
	if len(args) < 1 {
		r.reply(ctx, msg, tgui.Esc("usage: unwatch <coin>").String())
		return
	}
	coin := strings.ToLower(args[0])

	removed, err := r.store.DeleteSubscription(ctx, msg.ChatID, coin)
	if err != nil {
		r.log.Error("unwatch failed", logx.Int64("chat_id", msg.ChatID), logx.String("coin", coin), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("could not remove the watch, try again").String())
		return
	}
	if !removed {
		r.reply(ctx, msg, tgui.Esc("no watch for "+coin+" in this chat").String())
		return
	}
	r.reply(ctx, msg, tgui.JoinH(" ", tgui.Esc("🛑 stopped watching"), tgui.B(coin)).String())
}

func (r *Router) cmdWatchlist(ctx context.Context, msg *kit.Message) {
	subs, err := r.store.ListChatSubscriptions(ctx, msg.ChatID)
	if err != nil {
		r.log.Error("watchlist load failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("could not load the watchlist, try again").String())
		return
	}
	if len(subs) == 0 {
		r.reply(ctx, msg, tgui.Esc("no watches in this chat").String())
		return
	}

	lines := make([]tgui.H, 0, len(subs)+1)
	lines = append(lines, tgui.B("Watches in this chat"))
	for _, sub := range subs {
		state := "on"
		if !sub.Enabled {
			state = "off"
		}
		lines = append(lines, tgui.JoinH(" ",
			tgui.Code(sub.Coin),
			tgui.Esc(fmt.Sprintf("every %dm (%s)", sub.IntervalMinutes, state)),
		))
	}
	r.reply(ctx, msg, tgui.JoinH("\n", lines...).String())
}

func (r *Router) cmdSetPrefix(ctx context.Context, msg *kit.Message, args []string) {
	if !r.requireAdmin(ctx, msg) {
		r.reply(ctx, msg, tgui.Esc("only chat admins can change the prefix").String())
		return
	}
	if len(args) < 1 {
		r.reply(ctx, msg, tgui.Esc("usage: setprefix <p> (or 'none' to clear)").String())
		return
	}
	prefix := args[0]
	if strings.EqualFold(prefix, "none") {
		prefix = ""
	}
	if len(prefix) > maxPrefixLen || strings.HasPrefix(prefix, "/") {
		r.reply(ctx, msg, tgui.Esc(fmt.Sprintf("prefix must be at most %d characters and not start with /", maxPrefixLen)).String())
		return
	}

	if err := r.store.SetChatPrefix(ctx, msg.ChatID, prefix); err != nil {
		r.log.Error("setprefix failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		r.reply(ctx, msg, tgui.Esc("could not save the prefix, try again").String())
		return
	}
	if prefix == "" {
		r.reply(ctx, msg, tgui.Esc("custom prefix cleared; slash commands only").String())
		return
	}
	r.reply(ctx, msg, tgui.JoinH(" ", tgui.Esc("prefix set to"), tgui.Code(prefix)).String())
}

func clampInterval(minutes int) int {
	if minutes < minIntervalMinutes {
		return minIntervalMinutes
	}
	if minutes > maxIntervalMinutes {
		return maxIntervalMinutes
	}
	return minutes
}
