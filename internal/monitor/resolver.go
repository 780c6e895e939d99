package monitor

import (
	"context"

	logx "statusninja/pkg/logx"
)

// SubscriberSource is the narrow store view the resolver needs.
type SubscriberSource interface {
	ListSubscriberChatIDs(ctx context.Context, endpointID string) ([]int64, error)
}

// Resolver maps an endpoint to the chats currently subscribed to it.
// Subscriptions whose chat has been deleted are excluded by the store join
// and never surface as errors.
type Resolver struct {
	store SubscriberSource
	log   logx.Logger
}

func NewResolver(store SubscriberSource, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{store: store, log: log}
}

func (r *Resolver) ResolveSubscribers(ctx context.Context, endpointID string) ([]int64, error) {
	return r.store.ListSubscriberChatIDs(ctx, endpointID)
}
