package transport

import "context"

// Update is one inbound event from the chat platform.
type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

// ChatTarget identifies where a message is delivered: a chat plus an
// optional forum topic thread inside it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// ChatInfo is the result of the first resolution stage (chat lookup).
type ChatInfo struct {
	ID      int64
	Title   string
	Type    string
	IsForum bool
}

// MemberInfo is the result of the second resolution stage (bot membership
// inside the chat).
type MemberInfo struct {
	Role     string
	CanPost  bool
	IsMember bool
}

// Adapter abstracts the chat platform client.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

	// ResolveChat looks a chat up by id. It is the first stage of
	// destination resolution.
	ResolveChat(ctx context.Context, chatID int64) (ChatInfo, error)

	// BotMember reports the bot's own membership in the chat. It is the
	// second stage of destination resolution.
	BotMember(ctx context.Context, chatID int64) (MemberInfo, error)

	// IsChatAdmin reports whether userID administers the chat.
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}
