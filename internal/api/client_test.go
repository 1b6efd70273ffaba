package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestRequest_UnwrapsEnvelope(t *testing.T) {
	srv := newServer(t, respond(http.StatusCreated,
		`{"status":201,"data":{"result":{"id":1},"response":"created"}}`))
	c := New(Config{BaseURL: srv.URL})

	resp, err := c.Post(context.Background(), "/api/graves", map[string]any{"title": "T"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":1}`, string(resp.Data))
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "created", resp.Message)

	got, err := DecodeAs[map[string]int](resp)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"id": 1}, got)
}

func TestRequest_EnvelopeMessageFallback(t *testing.T) {
	srv := newServer(t, respond(http.StatusOK,
		`{"status":200,"data":{"result":[1,2],"message":"listed"}}`))
	c := New(Config{BaseURL: srv.URL})

	resp, err := c.Get(context.Background(), "/api/graves")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(resp.Data))
	assert.Equal(t, "listed", resp.Message)
}

func TestRequest_NonEnvelopeBodyPassesThrough(t *testing.T) {
	bodies := []string{
		`{"id":7,"title":"plain"}`,
		`{"data":{"no_result":true}}`,
		`{"data":[1,2,3]}`,
		`[{"id":1}]`,
		`"just a string"`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := newServer(t, respond(http.StatusOK, body))
			c := New(Config{BaseURL: srv.URL})

			resp, err := c.Get(context.Background(), "/anything")
			require.NoError(t, err)
			assert.JSONEq(t, body, string(resp.Data))
			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Empty(t, resp.Message)
		})
	}
}

func TestRequest_EmptyBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := New(Config{BaseURL: srv.URL})

	resp, err := c.Delete(context.Background(), "/api/users")
	require.NoError(t, err)
	assert.Nil(t, resp.Data)
	assert.Equal(t, http.StatusNoContent, resp.Status)

	var v map[string]any
	require.NoError(t, resp.Decode(&v))
	assert.Nil(t, v)
}

func TestRequest_ErrorMappingTable(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{400, KindValidation},
		{401, KindUnauthorized},
		{403, KindForbidden},
		{404, KindNotFound},
		{422, KindValidation},
		{500, KindServer},
		{502, KindServer},
		{503, KindServer},
		{504, KindServer},
		{999, KindUnknown},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			srv := newServer(t, respond(tc.status, `{}`))
			c := New(Config{BaseURL: srv.URL})

			_, err := c.Get(context.Background(), "/x")
			require.Error(t, err)

			apiErr, ok := AsError(err)
			require.True(t, ok, "expected *Error, got %T", err)
			assert.Equal(t, tc.kind, apiErr.Kind)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, DefaultMessage(tc.kind), apiErr.Message)
		})
	}
}

func TestRequest_BackendMessageOverridesDefault(t *testing.T) {
	srv := newServer(t, respond(http.StatusNotFound, `{"error":{"message":"Custom message"}}`))
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Get(context.Background(), "/api/graves/42")
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, apiErr.Kind)
	assert.Equal(t, "Custom message", apiErr.Message)
}

func TestRequest_ErrorDetails(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
		details any
	}{
		{
			name:    "details field",
			body:    `{"status":422,"error":{"code":"INVALID","message":"bad date","details":{"field":"unlock_date"}}}`,
			code:    "INVALID",
			message: "bad date",
			details: map[string]any{"field": "unlock_date"},
		},
		{
			name:    "whole error object",
			body:    `{"error":{"code":"E1","reason":"x"}}`,
			code:    "E1",
			message: DefaultMessage(KindValidation),
			details: map[string]any{"code": "E1", "reason": "x"},
		},
		{
			name:    "string error",
			body:    `{"error":"title is required"}`,
			message: "title is required",
		},
		{
			name:    "plain text",
			body:    `nope`,
			message: DefaultMessage(KindValidation),
			details: "nope",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, respond(http.StatusUnprocessableEntity, tc.body))
			c := New(Config{BaseURL: srv.URL})

			_, err := c.Post(context.Background(), "/api/graves", nil)
			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindValidation, apiErr.Kind)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.details, apiErr.Details)
		})
	}
}

// spyTokens records the order of 401 side effects.
type spyTokens struct {
	mu     sync.Mutex
	events []string
	client *Client

	headerPresentAtRemoval bool
}

func (s *spyTokens) RemoveToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, s.headerPresentAtRemoval = s.client.AuthToken()
	s.events = append(s.events, "token")
}

func (s *spyTokens) record(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func TestRequest_UnauthorizedSideEffects(t *testing.T) {
	srv := newServer(t, respond(http.StatusUnauthorized, `{"error":{"message":"expired"}}`))

	spy := &spyTokens{}
	c := New(Config{BaseURL: srv.URL}, WithTokenRemover(spy))
	spy.client = c
	c.SetAuthToken("secret")

	var headerPresentAtHandler bool
	calls := 0
	c.SetUnauthorizedHandler(func() {
		calls++
		_, headerPresentAtHandler = c.AuthToken()
		spy.record("handler")
	})

	_, err := c.Get(context.Background(), "/api/graves")

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, []string{"token", "handler"}, spy.events)
	assert.True(t, spy.headerPresentAtRemoval, "token must be removed before the header")
	assert.False(t, headerPresentAtHandler, "header must be gone before the handler runs")
	assert.Equal(t, 1, calls)

	_, ok := c.AuthToken()
	assert.False(t, ok)
}

func TestRequest_UnauthorizedWithoutHandler(t *testing.T) {
	srv := newServer(t, respond(http.StatusUnauthorized, ``))
	c := New(Config{BaseURL: srv.URL})
	c.SetAuthToken("secret")

	_, err := c.Get(context.Background(), "/api/users/me")
	assert.True(t, IsKind(err, KindUnauthorized))
	_, ok := c.AuthToken()
	assert.False(t, ok)
}

func TestRequest_Headers(t *testing.T) {
	headers := make(chan http.Header, 2)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})

	c := New(Config{BaseURL: srv.URL, Headers: map[string]string{"X-Client": "cli"}})
	c.SetAuthToken("abc")

	_, err := c.Request(context.Background(), "/api/graves", RequestOptions{
		Headers: map[string]string{"X-Client": "override"},
	})
	require.NoError(t, err)

	got := <-headers
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "override", got.Get("X-Client"))

	c.RemoveAuthToken()
	_, err = c.Get(context.Background(), "/api/graves")
	require.NoError(t, err)

	got = <-headers
	assert.Empty(t, got.Get("Authorization"))
	assert.Equal(t, "cli", got.Get("X-Client"))
}

type capturedRequest struct {
	method string
	body   []byte
}

func TestRequest_SendsJSONBody(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured <- capturedRequest{method: r.Method, body: body}
		w.WriteHeader(http.StatusOK)
	})
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Put(context.Background(), "api/notifications/read-all", map[string]bool{"all": true})
	require.NoError(t, err)

	got := <-captured
	assert.Equal(t, http.MethodPut, got.method)
	assert.JSONEq(t, `{"all":true}`, string(got.body))

	_, err = c.Post(context.Background(), "/x", func() {})
	assert.True(t, IsKind(err, KindUnknown))
}

func TestRequest_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))

	transport := &http.Transport{}
	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}))

	start := time.Now()
	_, err := c.Get(context.Background(), "/slow")

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)

	close(release)
	srv.Close()
	transport.CloseIdleConnections()
}

func TestRequest_CallerCancellationIsNetworkError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c := New(Config{BaseURL: srv.URL, Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Get(ctx, "/slow")
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url})
	_, err := c.Get(context.Background(), "/api/graves")

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Equal(t, 0, apiErr.Status)
	assert.NotNil(t, apiErr.Unwrap())
}

func TestNew_BaseURLFromEnv(t *testing.T) {
	srv := newServer(t, respond(http.StatusOK, `{"status":200,"data":{"result":"pong"}}`))
	t.Setenv(EnvBaseURL, srv.URL+"/")

	c := New(Config{})
	assert.Equal(t, srv.URL, c.BaseURL())

	resp, err := c.Get(context.Background(), "/ping")
	require.NoError(t, err)
	assert.JSONEq(t, `"pong"`, string(resp.Data))
}

func TestDownload(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "capsule bytes")
	})
	c := New(Config{BaseURL: srv.URL})
	c.SetAuthToken("tok")

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "/files/1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("capsule bytes")), n)
	assert.Equal(t, "capsule bytes", buf.String())

	buf.Reset()
	_, err = c.Download(context.Background(), srv.URL+"/missing", &buf)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Zero(t, buf.Len())
}

func TestDownload_ForeignHostGetsNoToken(t *testing.T) {
	foreignAuth := make(chan string, 2)
	foreign := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		foreignAuth <- r.Header.Get("Authorization")
		if r.URL.Path == "/expired.png" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "png bytes")
	})
	backend := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "own bytes")
	})

	spy := &spyTokens{}
	c := New(Config{BaseURL: backend.URL}, WithTokenRemover(spy))
	spy.client = c
	c.SetAuthToken("secret")
	handled := false
	c.SetUnauthorizedHandler(func() { handled = true })

	var buf bytes.Buffer
	_, err := c.Download(context.Background(), foreign.URL+"/file.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", buf.String())
	assert.Empty(t, <-foreignAuth)

	_, err = c.Download(context.Background(), foreign.URL+"/expired.png", io.Discard)
	assert.True(t, IsKind(err, KindUnauthorized))
	assert.Empty(t, <-foreignAuth)

	token, ok := c.AuthToken()
	assert.True(t, ok, "a foreign 401 must not end the session")
	assert.Equal(t, "secret", token)
	assert.Empty(t, spy.events)
	assert.False(t, handled)

	buf.Reset()
	_, err = c.Download(context.Background(), backend.URL+"/files/1", &buf)
	require.NoError(t, err)
	assert.Equal(t, "own bytes", buf.String())
}

func TestClient_ConcurrentHeaderMutation(t *testing.T) {
	srv := newServer(t, respond(http.StatusOK, `{}`))
	c := New(Config{BaseURL: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			c.SetAuthToken(fmt.Sprint("token-", i))
		}(i)
		go func() {
			defer wg.Done()
			c.RemoveAuthToken()
		}()
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestError_Formatting(t *testing.T) {
	e := NewError(KindForbidden, "")
	assert.Equal(t, DefaultMessage(KindForbidden), e.Message)
	assert.Contains(t, e.Error(), string(KindForbidden))

	e.Status = 403
	assert.Contains(t, e.Error(), "status 403")

	wrapped := fmt.Errorf("creating capsule: %w", e)
	assert.True(t, IsKind(wrapped, KindForbidden))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(io.EOF, KindNotFound))
	assert.Equal(t, DefaultMessage(KindUnknown), DefaultMessage(Kind("???")))
}
