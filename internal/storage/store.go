package storage

import "context"

// Store is the persistence API used by the registry and monitor.
//
// Deleting an endpoint or chat does NOT remove its subscriptions; callers
// run the cascade (DeleteSubscriptionsFor*) before deleting the parent row.
type Store interface {
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
	ListEndpointsByOwner(ctx context.Context, ownerID int64) ([]Endpoint, error)
	GetEndpointByName(ctx context.Context, name string) (Endpoint, error)
	InsertEndpoint(ctx context.Context, e Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error

	ChatExists(ctx context.Context, id int64) (bool, error)
	InsertChat(ctx context.Context, c Chat) error
	DeleteChat(ctx context.Context, id int64) error

	SubscriptionExists(ctx context.Context, chatID int64, endpointID string) (bool, error)
	InsertSubscription(ctx context.Context, s Subscription) error
	DeleteSubscription(ctx context.Context, chatID int64, endpointID string) error
	DeleteSubscriptionsForEndpoint(ctx context.Context, endpointID string) error
	DeleteSubscriptionsForChat(ctx context.Context, chatID int64) error

	// ListSubscriberChatIDs joins subscriptions against live chat rows;
	// subscriptions whose chat has been deleted are excluded.
	ListSubscriberChatIDs(ctx context.Context, endpointID string) ([]int64, error)

	Close() error
}
