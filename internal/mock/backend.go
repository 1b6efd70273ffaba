// Package mock is an in-process stand-in for the TimeGrave backend. It
// implements the same service interfaces as the HTTP services, keeps its
// state in SQLite, and fails with the same *api.Error kinds the real
// backend would produce.
package mock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/service"
)

// DefaultSessionTTL is how long a mock session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// MemoryDSN opens a private database that vanishes on Close.
const MemoryDSN = ":memory:"

// timeLayout sorts lexically, which the ORDER BY clauses rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	_ service.AuthAPI         = (*Backend)(nil)
	_ service.GravesAPI       = (*Graves)(nil)
	_ service.NotificationAPI = (*Notifications)(nil)
)

// Option customises a Backend.
type Option func(*Backend)

// WithClock replaces time.Now. Capsules unlock against this clock.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.ttl = ttl }
}

// WithLogger sets the backend logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// Backend serves auth, graves and notifications from a SQLite database.
// Like api.Client it carries the bearer token for the caller, so the
// session layer can drive either one.
type Backend struct {
	db     *sqlx.DB
	now    func() time.Time
	ttl    time.Duration
	logger *zap.Logger

	mu             sync.Mutex
	token          string
	onUnauthorized func()
}

// Open creates (or reopens) a mock database at dsn and applies pending
// migrations. Use MemoryDSN for a throwaway backend.
func Open(dsn string, opts ...Option) (*Backend, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mock db: %w", err)
	}
	// Every :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	b := &Backend{
		db:     db,
		now:    time.Now,
		ttl:    DefaultSessionTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return b, nil
}

// Graves is the capsule side of a Backend.
type Graves struct{ *Backend }

// Notifications is the notification side of a Backend.
type Notifications struct{ *Backend }

// Graves returns the capsule endpoints.
func (b *Backend) Graves() *Graves { return &Graves{b} }

// Notifications returns the notification endpoints.
func (b *Backend) Notifications() *Notifications { return &Notifications{b} }

// Services bundles the backend behind the service interfaces.
func (b *Backend) Services() service.Set {
	return service.Set{
		Auth:          b,
		Graves:        b.Graves(),
		Notifications: b.Notifications(),
	}
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := b.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = b.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := b.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// SetAuthToken selects the session subsequent calls act as.
func (b *Backend) SetAuthToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// RemoveAuthToken forgets the current session.
func (b *Backend) RemoveAuthToken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = ""
}

// SetUnauthorizedHandler registers fn to run after a call is rejected as
// unauthorized.
func (b *Backend) SetUnauthorizedHandler(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onUnauthorized = fn
}

// authorize resolves the current token to a user id. Unknown or expired
// sessions are rejected the way the HTTP client rejects a 401.
func (b *Backend) authorize(ctx context.Context) (int64, error) {
	b.mu.Lock()
	token := b.token
	b.mu.Unlock()

	if token == "" {
		return 0, b.unauthorized("")
	}

	var s struct {
		UserID    int64  `db:"user_id"`
		ExpiresAt string `db:"expires_at"`
	}
	err := b.db.GetContext(ctx, &s, "SELECT user_id, expires_at FROM sessions WHERE token = ?", token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, b.unauthorized("")
	}
	if err != nil {
		return 0, storageErr(err)
	}

	expires, err := time.Parse(timeLayout, s.ExpiresAt)
	if err != nil || !b.now().Before(expires) {
		if _, delErr := b.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); delErr != nil {
			b.logger.Warn("deleting expired session", zap.Error(delErr))
		}
		return 0, b.unauthorized("")
	}
	return s.UserID, nil
}

// unauthorized mirrors the client's 401 handling: the header is dropped
// before the handler runs.
func (b *Backend) unauthorized(message string) *api.Error {
	b.mu.Lock()
	b.token = ""
	handler := b.onUnauthorized
	b.mu.Unlock()

	if handler != nil {
		handler()
	}
	return fail(401, message)
}

// fail builds the error the HTTP client would classify for status.
func fail(status int, message string) *api.Error {
	kind := api.KindForStatus(status)
	if message == "" {
		message = api.DefaultMessage(kind)
	}
	return &api.Error{Kind: kind, Message: message, Status: status}
}

// storageErr wraps a storage failure as a 500.
func storageErr(err error) *api.Error {
	e := fail(500, "")
	e.Err = err
	return e
}

func (b *Backend) stamp() string {
	return b.now().UTC().Format(timeLayout)
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
