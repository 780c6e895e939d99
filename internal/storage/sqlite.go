package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "statusninja/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store and runs migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if !isMemoryPath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- endpoints ----

func (s *sqliteStore) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	return s.queryEndpoints(ctx,
		`SELECT id, name, url, owner_id, created_at FROM endpoints ORDER BY created_at, id`)
}

func (s *sqliteStore) ListEndpointsByOwner(ctx context.Context, ownerID int64) ([]Endpoint, error) {
	return s.queryEndpoints(ctx,
		`SELECT id, name, url, owner_id, created_at FROM endpoints WHERE owner_id = ? ORDER BY created_at, id`,
		ownerID)
}

func (s *sqliteStore) queryEndpoints(ctx context.Context, q string, args ...any) ([]Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		var (
			e  Endpoint
			at string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.URL, &e.OwnerID, &at); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetEndpointByName(ctx context.Context, name string) (Endpoint, error) {
	var (
		e  Endpoint
		at string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, owner_id, created_at FROM endpoints WHERE name = ?`, name).
		Scan(&e.ID, &e.Name, &e.URL, &e.OwnerID, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Endpoint{}, ErrNotFound
	}
	if err != nil {
		return Endpoint{}, err
	}
	e.CreatedAt = parseTime(at)
	return e, nil
}

func (s *sqliteStore) InsertEndpoint(ctx context.Context, e Endpoint) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints(id, name, url, owner_id, created_at) VALUES(?,?,?,?,?)`,
		e.ID, e.Name, e.URL, e.OwnerID, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return mapConflict(err)
}

func (s *sqliteStore) DeleteEndpoint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

// ---- chats ----

func (s *sqliteStore) ChatExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chats WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) InsertChat(ctx context.Context, c Chat) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(id, description, created_at) VALUES(?,?,?)`,
		c.ID, nullStr(c.Description), c.CreatedAt.UTC().Format(time.RFC3339Nano))
	return mapConflict(err)
}

func (s *sqliteStore) DeleteChat(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

// ---- subscriptions ----

func (s *sqliteStore) SubscriptionExists(ctx context.Context, chatID int64, endpointID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM subscriptions WHERE chat_id = ? AND endpoint_id = ?`,
		chatID, endpointID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) InsertSubscription(ctx context.Context, sub Subscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(id, endpoint_id, chat_id, created_at) VALUES(?,?,?,?)`,
		sub.ID, sub.EndpointID, sub.ChatID, sub.CreatedAt.UTC().Format(time.RFC3339Nano))
	return mapConflict(err)
}

func (s *sqliteStore) DeleteSubscription(ctx context.Context, chatID int64, endpointID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND endpoint_id = ?`, chatID, endpointID)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

func (s *sqliteStore) DeleteSubscriptionsForEndpoint(ctx context.Context, endpointID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE endpoint_id = ?`, endpointID)
	return err
}

func (s *sqliteStore) DeleteSubscriptionsForChat(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE chat_id = ?`, chatID)
	return err
}

func (s *sqliteStore) ListSubscriberChatIDs(ctx context.Context, endpointID string) ([]int64, error) {
	// Inner join drops subscriptions whose chat row is gone.
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id FROM subscriptions s
		 JOIN chats c ON c.id = s.chat_id
		 WHERE s.endpoint_id = ?
		 ORDER BY c.id`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- helpers ----

func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func notFoundIfZero(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
