package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert violates a uniqueness rule
	// (duplicate endpoint name, duplicate chat id, duplicate subscription).
	ErrConflict = errors.New("record already exists")
)

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Endpoint is a monitored URL record.
//
// Name is the key used in commands and is globally unique (enforced by a
// UNIQUE index). Name, URL and OwnerID are immutable after creation; there
// is no update operation.
type Endpoint struct {
	ID        string
	Name      string
	URL       string
	OwnerID   int64 // chat id that created the endpoint
	CreatedAt time.Time
}

// Chat is a notification destination. The id is the platform chat id:
// positive ids are private chats, non-positive ids are groups.
type Chat struct {
	ID          int64
	Description string
	CreatedAt   time.Time
}

// Subscription links one chat to one endpoint. At most one active
// subscription exists per (endpoint, chat) pair.
type Subscription struct {
	ID         string
	EndpointID string
	ChatID     int64
	CreatedAt  time.Time
}
