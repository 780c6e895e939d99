package transport

import "context"

type UpdateKind string

const (
	UpdateMessage   UpdateKind = "message"
	UpdateBotJoined UpdateKind = "bot_joined"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
	Joined  *Joined
}

type Message struct {
	ID           int
	ChatID       int64
	ChatType     string // "private", "group", "supergroup", "channel"
	ChatTitle    string
	FromID       int64
	FromUsername string
	Text         string
}

// Joined is emitted when the bot is added to a chat.
type Joined struct {
	ChatID    int64
	ChatType  string
	ChatTitle string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the outbound messaging + membership surface of the chat platform.
//
// SendText is best-effort: callers decide whether a failure is fatal.
// MemberStatus re-queries the platform on every call; it is never cached.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, chatID int64, text string, opt *SendOptions) error
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}
