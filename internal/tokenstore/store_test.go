package tokenstore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return New(backend, WithClock(func() time.Time { return fixedNow })), backend
}

func raw(t *testing.T, b Backend, key string) (string, bool) {
	t.Helper()
	v, ok, err := b.Get(key)
	require.NoError(t, err)
	return v, ok
}

func TestStore_ValidToken(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.SetToken("tok", "2026-01-02T00:00:00Z"))

	token, ok := s.GetToken()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.False(t, s.IsTokenExpired())

	exp, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestStore_GetTokenEvictsExpired(t *testing.T) {
	s, backend := newTestStore(t)

	require.NoError(t, s.SetToken("t", "2020-01-01T00:00:00Z"))

	token, ok := s.GetToken()
	assert.False(t, ok)
	assert.Empty(t, token)

	_, hasToken := raw(t, backend, KeyToken)
	_, hasExpiry := raw(t, backend, KeyExpiresAt)
	assert.False(t, hasToken, "token key should be evicted")
	assert.False(t, hasExpiry, "expiry key should be evicted")
}

func TestStore_IsTokenExpiredDoesNotEvict(t *testing.T) {
	s, backend := newTestStore(t)

	require.NoError(t, s.SetToken("t", "2020-01-01T00:00:00Z"))

	assert.True(t, s.IsTokenExpired())

	token, hasToken := raw(t, backend, KeyToken)
	_, hasExpiry := raw(t, backend, KeyExpiresAt)
	assert.True(t, hasToken)
	assert.True(t, hasExpiry)
	assert.Equal(t, "t", token)
}

func TestStore_ExpiryEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		expiry *string
	}{
		{"missing", nil},
		{"unparseable", strPtr("next tuesday")},
		{"exactly now", strPtr(fixedNow.Format(time.RFC3339))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, backend := newTestStore(t)
			require.NoError(t, backend.Set(Entry{Key: KeyToken, Value: "t"}))
			if tc.expiry != nil {
				require.NoError(t, backend.Set(Entry{Key: KeyExpiresAt, Value: *tc.expiry}))
			}

			assert.True(t, s.IsTokenExpired())
			_, stillThere := raw(t, backend, KeyToken)
			assert.True(t, stillThere)

			_, ok := s.GetToken()
			assert.False(t, ok)
			_, stillThere = raw(t, backend, KeyToken)
			assert.False(t, stillThere)
		})
	}
}

func TestStore_GetTokenEvictsOrphanExpiry(t *testing.T) {
	s, backend := newTestStore(t)
	require.NoError(t, backend.Set(Entry{Key: KeyExpiresAt, Value: "2030-01-01T00:00:00Z"}))

	_, ok := s.GetToken()
	assert.False(t, ok)

	_, hasExpiry := raw(t, backend, KeyExpiresAt)
	assert.False(t, hasExpiry, "an expiry without a token should be evicted")
	_, ok = s.ExpiresAt()
	assert.False(t, ok)
}

func TestStore_NoTokenIsExpired(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.GetToken()
	assert.False(t, ok)
	assert.True(t, s.IsTokenExpired())
	_, ok = s.ExpiresAt()
	assert.False(t, ok)
}

func TestStore_RemoveTokenIdempotent(t *testing.T) {
	s, backend := newTestStore(t)
	require.NoError(t, s.SetToken("t", "2030-01-01T00:00:00Z"))

	s.RemoveToken()
	s.RemoveToken()

	_, ok := raw(t, backend, KeyToken)
	assert.False(t, ok)
}

func TestStore_NilBackendIsSafe(t *testing.T) {
	s := New(nil)

	assert.NoError(t, s.SetToken("t", "2030-01-01T00:00:00Z"))
	_, ok := s.GetToken()
	assert.False(t, ok)
	assert.True(t, s.IsTokenExpired())
	s.RemoveToken()
}

type failingBackend struct{}

func (failingBackend) Get(string) (string, bool, error) { return "", false, errors.New("boom") }
func (failingBackend) Set(...Entry) error               { return errors.New("boom") }
func (failingBackend) Remove(...string) error           { return errors.New("boom") }

func TestStore_BackendErrorsDoNotEscapeReads(t *testing.T) {
	s := New(failingBackend{})

	assert.Error(t, s.SetToken("t", "2030-01-01T00:00:00Z"))
	_, ok := s.GetToken()
	assert.False(t, ok)
	assert.True(t, s.IsTokenExpired())
	assert.NotPanics(t, s.RemoveToken)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.SetToken("t", "2030-01-01T00:00:00Z")
		}()
		go func() {
			defer wg.Done()
			if token, ok := s.GetToken(); ok {
				assert.Equal(t, "t", token)
			}
		}()
	}
	wg.Wait()
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	ring, err := openKeyring(keyring.Config{
		ServiceName:      "timegrave-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("test"),
	})
	require.NoError(t, err)

	return map[string]Backend{
		"memory":  NewMemoryBackend(),
		"sqlite":  sqlite,
		"keyring": ring,
	}
}

func TestBackends_Contract(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := b.Get("absent")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Set(Entry{Key: "a", Value: "1"}, Entry{Key: "b", Value: "2"}))
			require.NoError(t, b.Set(Entry{Key: "a", Value: "3"}))

			v, ok, err := b.Get("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "3", v)

			require.NoError(t, b.Remove("a", "b", "never-set"))
			_, ok, err = b.Get("b")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Remove("a"))
		})
	}
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/tokens/tg.db"

	b, err := OpenSQLite(path)
	require.NoError(t, err)
	s := New(b, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, s.SetToken("persisted", "2030-01-01T00:00:00Z"))
	require.NoError(t, b.Close())

	b2, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b2.Close() })

	token, ok := New(b2, WithClock(func() time.Time { return fixedNow })).GetToken()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func strPtr(s string) *string { return &s }
