// Package auth decides whether a (chat, user) pair may act on an endpoint
// or on chat-level state.
package auth

import (
	"context"
	"errors"

	"statusninja/internal/storage"
	logx "statusninja/pkg/logx"
)

// MembershipClient queries the chat platform for a user's status in a chat.
// The guard re-queries on every call; membership is never cached.
type MembershipClient interface {
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// EndpointLookup is the narrow store view the guard needs.
type EndpointLookup interface {
	GetEndpointByName(ctx context.Context, name string) (storage.Endpoint, error)
}

// IsGroupChat reports whether chatID names a group/broadcast chat.
// Positive ids are private chats; the sign convention is load-bearing.
func IsGroupChat(chatID int64) bool { return chatID <= 0 }

type Guard struct {
	store   EndpointLookup
	members MembershipClient
	log     logx.Logger
}

func NewGuard(store EndpointLookup, members MembershipClient, log logx.Logger) *Guard {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Guard{store: store, members: members, log: log}
}

// Allowed reports whether (chatID, userID) may run a command, optionally
// scoped to the endpoint named endpointName ("" for chat-level state).
//
// Private chats may always act on their own chat-level state, and on
// endpoints they own. A name that resolves to nothing authorizes
// unconditionally: the command layer owns the not-found message and the
// guard must not shadow it with a denial.
//
// Group chats require creator or administrator status. Any membership
// query failure resolves to not authorized (fail closed).
//
// The only error return is a store failure.
func (g *Guard) Allowed(ctx context.Context, chatID, userID int64, endpointName string) (bool, error) {
	if !IsGroupChat(chatID) {
		if endpointName == "" {
			return true, nil
		}
		e, err := g.store.GetEndpointByName(ctx, endpointName)
		if errors.Is(err, storage.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return e.OwnerID == chatID, nil
	}

	status, err := g.members.MemberStatus(ctx, chatID, userID)
	if err != nil {
		g.log.Warn("membership query failed; denying",
			logx.Int64("chat_id", chatID), logx.Int64("user_id", userID), logx.Err(err))
		return false, nil
	}
	return status == "creator" || status == "administrator", nil
}
