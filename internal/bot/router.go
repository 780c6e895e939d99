// Package bot routes inbound chat commands: parse, lazy chat registration,
// authorization gate, command execution and the reply.
package bot

import (
	"context"
	"runtime/debug"
	"strings"

	"statusninja/internal/auth"
	"statusninja/internal/notify"
	"statusninja/internal/registry"
	"statusninja/internal/transport"
	logx "statusninja/pkg/logx"
)

const (
	msgUnknownCommand = "Unknown command. Use /help to see available commands."
	msgGenericFailure = "Something went wrong. Please try again."
	msgDeniedGeneric  = "In private chats, you can only manage your own APIs. In group chats, only administrators can use management commands."
	msgWelcome        = "Thanks for adding Status Bot! I will monitor your APIs. Use /help to see available commands."
)

// Router dispatches transport updates to command handlers.
type Router struct {
	registry   *registry.Service
	guard      *auth.Guard
	dispatcher *notify.Dispatcher
	log        logx.Logger
}

func NewRouter(reg *registry.Service, guard *auth.Guard, dispatcher *notify.Dispatcher, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{registry: reg, guard: guard, dispatcher: dispatcher, log: log}
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			r.handleUpdate(ctx, up)
		}
	}
}

func (r *Router) handleUpdate(ctx context.Context, up transport.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil && up.Message.Text != "" {
			r.handleMessage(ctx, up.Message)
		}
	case transport.UpdateBotJoined:
		if up.Joined != nil {
			r.handleJoined(ctx, up.Joined)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	cmd, args := parseCommand(m.Text)
	if !strings.HasPrefix(cmd, "/") {
		return
	}

	// Any slash command lazily registers the chat; a registration failure
	// must not block command processing.
	if err := r.registry.EnsureChat(ctx, m.ChatID, chatDescription(m.ChatType, m.ChatTitle)); err != nil {
		r.log.Warn("chat auto-registration failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}

	handler, ok := commandTable[cmd]
	if !ok {
		r.reply(ctx, m.ChatID, msgUnknownCommand)
		return
	}

	// Endpoint-scoped commands hand the name to the guard.
	endpointName := ""
	if handler.endpointScoped && len(args) > 0 {
		endpointName = args[0]
	}

	allowed, err := r.guard.Allowed(ctx, m.ChatID, m.FromID, endpointName)
	if err != nil {
		r.log.Error("authorization check failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		r.reply(ctx, m.ChatID, msgGenericFailure)
		return
	}
	if !allowed {
		if endpointName != "" {
			r.reply(ctx, m.ChatID, `You don't have permission to manage the API "`+endpointName+`".`)
		} else {
			r.reply(ctx, m.ChatID, msgDeniedGeneric)
		}
		return
	}

	text, err := handler.run(ctx, r, m.ChatID, args)
	if err != nil {
		r.log.Error("command failed",
			logx.String("cmd", cmd),
			logx.Int64("chat_id", m.ChatID),
			logx.Err(err))
		text = msgGenericFailure
	}
	r.reply(ctx, m.ChatID, text)
}

func (r *Router) handleJoined(ctx context.Context, j *transport.Joined) {
	r.log.Info("bot added to chat", logx.Int64("chat_id", j.ChatID), logx.String("type", j.ChatType))
	if err := r.registry.EnsureChat(ctx, j.ChatID, chatDescription(j.ChatType, j.ChatTitle)); err != nil {
		r.log.Warn("chat auto-registration failed", logx.Int64("chat_id", j.ChatID), logx.Err(err))
		return
	}
	r.reply(ctx, j.ChatID, msgWelcome)
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.dispatcher.Notify(ctx, chatID, text); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

// parseCommand splits a message into the command token and its arguments.
// A "@botname" suffix on the command is stripped so group mentions work.
func parseCommand(text string) (string, []string) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(parts[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd, parts[1:]
}

func chatDescription(chatType, title string) string {
	switch chatType {
	case "group", "supergroup":
		if title != "" {
			return title
		}
		return "Group chat"
	default:
		return "Direct message"
	}
}
