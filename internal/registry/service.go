// Package registry implements the business operations over the endpoint,
// chat and subscription records. It owns the error taxonomy mutating
// commands report to users: not-found, conflict and permission-denied are
// distinct and must never mask each other.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"statusninja/internal/storage"
	logx "statusninja/pkg/logx"
)

// ErrPermissionDenied is returned when a chat acts on an endpoint it does
// not own. Distinct from storage.ErrNotFound so callers phrase the right
// message.
var ErrPermissionDenied = errors.New("permission denied")

// ErrNotSubscribed is returned by Unsubscribe when the endpoint exists but
// the chat holds no subscription to it.
var ErrNotSubscribed = errors.New("not subscribed")

type Service struct {
	store storage.Store
	log   logx.Logger

	now   func() time.Time
	newID func() string
}

func New(store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// AddEndpoint registers a new monitored endpoint owned by ownerID.
// Endpoint names are globally unique; a duplicate name yields ErrConflict.
func (s *Service) AddEndpoint(ctx context.Context, name, rawURL string, ownerID int64) (storage.Endpoint, error) {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)
	if name == "" || rawURL == "" {
		return storage.Endpoint{}, errors.New("name and url are required")
	}
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		return storage.Endpoint{}, fmt.Errorf("invalid url %q", rawURL)
	}

	e := storage.Endpoint{
		ID:        s.newID(),
		Name:      name,
		URL:       rawURL,
		OwnerID:   ownerID,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertEndpoint(ctx, e); err != nil {
		return storage.Endpoint{}, err
	}
	s.log.Info("endpoint added", logx.String("name", name), logx.Int64("owner", ownerID))
	return e, nil
}

func (s *Service) ListEndpoints(ctx context.Context) ([]storage.Endpoint, error) {
	return s.store.ListEndpoints(ctx)
}

func (s *Service) ListEndpointsOwned(ctx context.Context, ownerID int64) ([]storage.Endpoint, error) {
	return s.store.ListEndpointsByOwner(ctx, ownerID)
}

// GetEndpointOwned fetches an endpoint by name and enforces ownership.
// A missing endpoint is storage.ErrNotFound; an existing endpoint owned by
// another chat is ErrPermissionDenied.
func (s *Service) GetEndpointOwned(ctx context.Context, name string, ownerID int64) (storage.Endpoint, error) {
	e, err := s.store.GetEndpointByName(ctx, name)
	if err != nil {
		return storage.Endpoint{}, err
	}
	if e.OwnerID != ownerID {
		return storage.Endpoint{}, fmt.Errorf("%w: endpoint %q is owned by another chat", ErrPermissionDenied, name)
	}
	return e, nil
}

// DeleteEndpoint removes an endpoint owned by ownerID and cascades its
// subscriptions first, so a crash between the two steps leaves no
// subscription pointing at a live endpoint.
func (s *Service) DeleteEndpoint(ctx context.Context, name string, ownerID int64) error {
	e, err := s.GetEndpointOwned(ctx, name, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubscriptionsForEndpoint(ctx, e.ID); err != nil {
		return err
	}
	if err := s.store.DeleteEndpoint(ctx, e.ID); err != nil {
		return err
	}
	s.log.Info("endpoint deleted", logx.String("name", name), logx.Int64("owner", ownerID))
	return nil
}

// EnsureChat lazily registers a chat. Already-registered is not an error.
func (s *Service) EnsureChat(ctx context.Context, chatID int64, description string) error {
	exists, err := s.store.ChatExists(ctx, chatID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.store.InsertChat(ctx, storage.Chat{ID: chatID, Description: description, CreatedAt: s.now()})
	if errors.Is(err, storage.ErrConflict) {
		// Raced with a concurrent registration; the chat exists either way.
		return nil
	}
	if err == nil {
		s.log.Debug("chat auto-registered", logx.Int64("chat_id", chatID))
	}
	return err
}

// AddChat explicitly registers a chat; duplicate registration is ErrConflict.
func (s *Service) AddChat(ctx context.Context, chatID int64, description string) error {
	return s.store.InsertChat(ctx, storage.Chat{ID: chatID, Description: description, CreatedAt: s.now()})
}

// RemoveChat deletes a chat and cascades all its subscriptions.
func (s *Service) RemoveChat(ctx context.Context, chatID int64) error {
	exists, err := s.store.ChatExists(ctx, chatID)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	if err := s.store.DeleteSubscriptionsForChat(ctx, chatID); err != nil {
		return err
	}
	return s.store.DeleteChat(ctx, chatID)
}

// Subscribe links chatID to the named endpoint, lazily creating the chat.
// The second subscription for the same pair is ErrConflict.
func (s *Service) Subscribe(ctx context.Context, chatID int64, endpointName string) error {
	e, err := s.GetEndpointOwned(ctx, endpointName, chatID)
	if err != nil {
		return err
	}
	if err := s.EnsureChat(ctx, chatID, ""); err != nil {
		return err
	}
	exists, err := s.store.SubscriptionExists(ctx, chatID, e.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: chat %d is already subscribed to %q", storage.ErrConflict, chatID, endpointName)
	}
	return s.store.InsertSubscription(ctx, storage.Subscription{
		ID:         s.newID(),
		EndpointID: e.ID,
		ChatID:     chatID,
		CreatedAt:  s.now(),
	})
}

// Unsubscribe removes the (chat, endpoint) link; a missing subscription is
// storage.ErrNotFound.
func (s *Service) Unsubscribe(ctx context.Context, chatID int64, endpointName string) error {
	e, err := s.GetEndpointOwned(ctx, endpointName, chatID)
	if err != nil {
		return err
	}
	exists, err := s.store.SubscriptionExists(ctx, chatID, e.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: chat %d is not subscribed to %q", ErrNotSubscribed, chatID, endpointName)
	}
	return s.store.DeleteSubscription(ctx, chatID, e.ID)
}

// EndpointExport is one entry of the configuration export.
// Chat ids are stringified for compatibility with the legacy consumer.
type EndpointExport struct {
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	ChatIDs []string `json:"chat_ids"`
}

// ExportConfig renders all endpoints with their subscriber chat ids.
func (s *Service) ExportConfig(ctx context.Context) ([]EndpointExport, error) {
	endpoints, err := s.store.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EndpointExport, 0, len(endpoints))
	for _, e := range endpoints {
		chatIDs, err := s.store.ListSubscriberChatIDs(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(chatIDs))
		for _, id := range chatIDs {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		out = append(out, EndpointExport{Name: e.Name, URL: e.URL, ChatIDs: ids})
	}
	return out, nil
}
