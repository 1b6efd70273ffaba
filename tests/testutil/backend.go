package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nhle/timegrave/internal/mock"
	"github.com/nhle/timegrave/internal/service"
)

// NewTestBackend creates an in-memory mock backend with all migrations
// applied. It automatically closes the backend when the test completes.
func NewTestBackend(t *testing.T, opts ...mock.Option) *mock.Backend {
	t.Helper()

	b, err := mock.Open(mock.MemoryDSN, opts...)
	if err != nil {
		t.Fatalf("creating test backend: %v", err)
	}

	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("closing test backend: %v", err)
		}
	})

	return b
}

// SignedIn registers email on b and selects the new session. It returns
// the sign-in result.
func SignedIn(t *testing.T, b *mock.Backend, email string) *service.SignInResult {
	t.Helper()

	ctx := context.Background()
	if _, err := b.SignUp(ctx, service.SignUpInput{Email: email, Username: "ghost", Password: "pw"}); err != nil {
		t.Fatalf("signing up %s: %v", email, err)
	}
	res, err := b.SignIn(ctx, service.SignInInput{Email: email, Password: "pw"})
	if err != nil {
		t.Fatalf("signing in %s: %v", email, err)
	}
	b.SetAuthToken(res.SessionToken)
	return res
}

// Clock is a settable time source for mock.WithClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
