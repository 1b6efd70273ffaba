// Package session ties the auth service to the persisted token and the
// bearer header. Services stay stateless; the Manager owns the side
// effects of signing in and out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/service"
)

// ErrNoSession is returned by Restore when no valid token is stored.
var ErrNoSession = errors.New("not signed in")

// Transport carries the bearer token. Both *api.Client and *mock.Backend
// implement it.
type Transport interface {
	SetAuthToken(token string)
	RemoveAuthToken()
	SetUnauthorizedHandler(fn func())
}

// TokenStore persists the session token. *tokenstore.Store implements it.
type TokenStore interface {
	SetToken(token, expiresAt string) error
	GetToken() (string, bool)
	RemoveToken()
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithExpiredHandler registers fn to run after the backend rejects the
// session, once local state has been cleared.
func WithExpiredHandler(fn func()) Option {
	return func(m *Manager) { m.onExpired = fn }
}

// Manager tracks the signed-in user for one process.
type Manager struct {
	auth      service.AuthAPI
	transport Transport
	tokens    TokenStore
	logger    *zap.Logger
	onExpired func()

	mu   sync.RWMutex
	user *model.User
}

// New creates a Manager and registers it as transport's unauthorized
// handler.
func New(auth service.AuthAPI, transport Transport, tokens TokenStore, opts ...Option) *Manager {
	m := &Manager{
		auth:      auth,
		transport: transport,
		tokens:    tokens,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	transport.SetUnauthorizedHandler(m.expired)
	return m
}

// SignUp registers an account without signing in.
func (m *Manager) SignUp(ctx context.Context, in service.SignUpInput) (*model.User, error) {
	return m.auth.SignUp(ctx, in)
}

// SignIn authenticates, persists the token, applies the bearer header and
// caches the user, in that order.
func (m *Manager) SignIn(ctx context.Context, in service.SignInInput) (*model.User, error) {
	res, err := m.auth.SignIn(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := m.tokens.SetToken(res.SessionToken, res.ExpiresAt); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	m.transport.SetAuthToken(res.SessionToken)

	user := res.User
	m.setUser(&user)
	m.logger.Info("signed in", zap.String("user_id", user.ID.String()))
	return &user, nil
}

// SignOut ends the session. Local state is cleared even when the server
// call fails; the server error is still returned.
func (m *Manager) SignOut(ctx context.Context) error {
	defer m.clearLocal()
	if err := m.auth.SignOut(ctx); err != nil {
		m.logger.Warn("server sign-out failed", zap.Error(err))
		return err
	}
	return nil
}

// DeleteAccount removes the account and then clears local state, which
// happens even when the server call fails.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	defer m.clearLocal()
	if err := m.auth.DeleteAccount(ctx); err != nil {
		m.logger.Warn("account deletion failed", zap.Error(err))
		return err
	}
	return nil
}

// Restore resumes a stored session. Expired tokens are evicted by the
// store and reported as ErrNoSession.
func (m *Manager) Restore(ctx context.Context) (*model.User, error) {
	token, ok := m.tokens.GetToken()
	if !ok {
		return nil, ErrNoSession
	}
	m.transport.SetAuthToken(token)

	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		return nil, err
	}
	m.setUser(user)
	return user, nil
}

// User returns a copy of the cached user.
func (m *Manager) User() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

// SignedIn reports whether a user is cached.
func (m *Manager) SignedIn() bool {
	_, ok := m.User()
	return ok
}

func (m *Manager) setUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
}

func (m *Manager) clearLocal() {
	m.tokens.RemoveToken()
	m.transport.RemoveAuthToken()
	m.setUser(nil)
}

// expired runs after the transport has dropped the header.
func (m *Manager) expired() {
	m.tokens.RemoveToken()
	m.setUser(nil)
	m.logger.Info("session expired")
	if m.onExpired != nil {
		m.onExpired()
	}
}
