package monitor

import (
	"context"
	"fmt"

	kit "github.com/felitouuuu/Naruto-sub000/internal/transport"
)

// AdapterResolver resolves destinations through the chat adapter:
// stage one looks the chat up by id, stage two checks that the bot is still a
// member that may post there. Either failure leaves the subscription untouched
// so it is retried on a later tick.
type AdapterResolver struct {
	Adapter kit.Adapter
}

func (r AdapterResolver) Resolve(ctx context.Context, chatID int64, threadID int) (kit.ChatTarget, error) {
	if _, err := r.Adapter.ResolveChat(ctx, chatID); err != nil {
		return kit.ChatTarget{}, fmt.Errorf("chat lookup: %w", err)
	}
	member, err := r.Adapter.BotMember(ctx, chatID)
	if err != nil {
		return kit.ChatTarget{}, fmt.Errorf("member lookup: %w", err)
	}
	if !member.IsMember || !member.CanPost {
		return kit.ChatTarget{}, fmt.Errorf("bot cannot post (role %s)", member.Role)
	}
	return kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, nil
}

// AdapterSink sends through the chat adapter.
type AdapterSink struct {
	Adapter kit.Adapter
}

func (s AdapterSink) Send(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	_, err := s.Adapter.SendText(ctx, to, text, opt)
	return err
}
