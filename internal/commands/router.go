package commands

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/felitouuuu/Naruto-sub000/internal/pricefeed"
	"github.com/felitouuuu/Naruto-sub000/internal/storage"
	kit "github.com/felitouuuu/Naruto-sub000/internal/transport"
	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

// Router turns inbound messages into command invocations.
//
// A message is a command when it starts with "/" or with the chat's stored
// custom prefix. Telegram-style "/cmd@BotName" suffixes are stripped.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	store   storage.Store
	prices  *pricefeed.Client
	charts  *pricefeed.ChartCache
	botName string
}

func NewRouter(adapter kit.Adapter, store storage.Store, prices *pricefeed.Client, charts *pricefeed.ChartCache, botName string, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:     log,
		adapter: adapter,
		store:   store,
		prices:  prices,
		charts:  charts,
		botName: botName,
	}
}

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			r.handle(ctx, up.Message)
		}
	}
}

func (r *Router) handle(ctx context.Context, msg *kit.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in command handler", logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
		}
	}()

	name, args, ok := r.parseCommand(ctx, msg)
	if !ok {
		return
	}

	r.log.Debug("command received",
		logx.String("command", name), logx.Int64("chat_id", msg.ChatID), logx.Int64("from", msg.FromID))

	switch name {
	case "help", "start":
		r.cmdHelp(ctx, msg)
	case "price":
		r.cmdPrice(ctx, msg, args)
	case "chart":
		r.cmdChart(ctx, msg, args)
	case "watch":
		r.cmdWatch(ctx, msg, args)
	case "unwatch":
		r.cmdUnwatch(ctx, msg, args)
	case "pause":
		r.setWatchEnabled(ctx, msg, args, false)
	case "resume":
		r.setWatchEnabled(ctx, msg, args, true)
	case "watchlist":
		r.cmdWatchlist(ctx, msg)
	case "setprefix":
		r.cmdSetPrefix(ctx, msg, args)
	}
}

// parseCommand extracts (command, args) from the message text, honoring the
// chat's custom prefix when one is stored.
func (r *Router) parseCommand(ctx context.Context, msg *kit.Message) (string, []string, bool) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", nil, false
	}

	var body string
	switch {
	case strings.HasPrefix(text, "/"):
		body = text[1:]
	default:
		prefix, err := r.store.GetChatPrefix(ctx, msg.ChatID)
		if err != nil || prefix == "" || !strings.HasPrefix(text, prefix) {
			return "", nil, false
		}
		body = strings.TrimSpace(text[len(prefix):])
	}
	if body == "" {
		return "", nil, false
	}

	fields := strings.Fields(body)
	name := strings.ToLower(fields[0])
	// "/price@MyBot" → "price"; ignore commands addressed to other bots.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		if r.botName != "" && !strings.EqualFold(target, r.botName) {
			return "", nil, false
		}
		name = name[:at]
	}
	return name, fields[1:], true
}

// requireAdmin gates mutating commands in group chats. Private chats are
// always allowed.
func (r *Router) requireAdmin(ctx context.Context, msg *kit.Message) bool {
	if !msg.IsGroup {
		return true
	}
	ok, err := r.adapter.IsChatAdmin(ctx, msg.ChatID, msg.FromID)
	if err != nil {
		r.log.Warn("admin check failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		return false
	}
	return ok
}

func (r *Router) reply(ctx context.Context, msg *kit.Message, html string) {
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if _, err := r.adapter.SendText(ctx, to, html, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}
