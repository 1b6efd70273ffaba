// Package tokenstore persists the session token and its expiry in a durable
// key-value backend and hands it back only while it is still valid.
package tokenstore

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/timegrave/internal/convert"
)

// Fixed keys under which the session is persisted.
const (
	KeyToken     = "timegrave_session_token"
	KeyExpiresAt = "timegrave_token_expires_at"
)

// Entry is a single key/value pair written to a Backend.
type Entry struct {
	Key   string
	Value string
}

// Backend is a durable string key-value store.
type Backend interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set writes all entries. Implementations apply them in order, and
	// atomically when the medium supports it.
	Set(entries ...Entry) error

	// Remove deletes the given keys. Missing keys are not an error.
	Remove(keys ...string) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used to report backend failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the session token holder. A Store without a backend behaves as
// if no token was ever saved.
type Store struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Store over backend. backend may be nil.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetToken persists token together with its RFC 3339 expiry. The expiry is
// written first so a concurrent reader never sees a token without one.
func (s *Store) SetToken(token, expiresAt string) error {
	if s.backend == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.Set(
		Entry{Key: KeyExpiresAt, Value: expiresAt},
		Entry{Key: KeyToken, Value: token},
	)
}

// GetToken returns the stored token while it is unexpired. A missing token,
// or a missing, unparseable or past expiry, evicts both keys and reports no
// token.
func (s *Store) GetToken() (string, bool) {
	if s.backend == nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, hasExpiry := s.read(KeyExpiresAt)
	token, hasToken := s.read(KeyToken)
	if !hasToken && !hasExpiry {
		return "", false
	}
	if !hasToken || s.expiredLocked() {
		s.removeLocked()
		return "", false
	}
	return token, true
}

// IsTokenExpired reports whether the stored expiry is missing or in the
// past. Unlike GetToken it never modifies the backend.
func (s *Store) IsTokenExpired() bool {
	if s.backend == nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expiredLocked()
}

// ExpiresAt returns the stored expiry, if any parses.
func (s *Store) ExpiresAt() (time.Time, bool) {
	if s.backend == nil {
		return time.Time{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.read(KeyExpiresAt)
	if !ok {
		return time.Time{}, false
	}
	t := convert.ParseISODate(raw)
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// RemoveToken deletes the token and its expiry. It is safe to call any
// number of times.
func (s *Store) RemoveToken() {
	if s.backend == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked()
}

func (s *Store) expiredLocked() bool {
	raw, ok := s.read(KeyExpiresAt)
	if !ok {
		return true
	}
	expiresAt := convert.ParseISODate(raw)
	if expiresAt == nil {
		return true
	}
	return !expiresAt.After(s.now())
}

func (s *Store) read(key string) (string, bool) {
	v, ok, err := s.backend.Get(key)
	if err != nil {
		s.logger.Warn("reading token store", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

func (s *Store) removeLocked() {
	if err := s.backend.Remove(KeyToken, KeyExpiresAt); err != nil {
		s.logger.Warn("clearing token store", zap.Error(err))
	}
}
