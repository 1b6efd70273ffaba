// Package api is the single point of outbound HTTP traffic to the TimeGrave
// backend. It owns the default headers, including the bearer token, unwraps
// the backend's response envelope and classifies every failure as an *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EnvBaseURL is consulted when Config.BaseURL is empty.
const EnvBaseURL = "TIMEGRAVE_API_URL"

// DefaultTimeout bounds a request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

var errRequestTimeout = errors.New("request timed out")

// TokenRemover forgets the persisted session. The client calls it when the
// backend answers 401.
type TokenRemover interface {
	RemoveToken()
}

// Config holds the client settings.
type Config struct {
	// BaseURL is prefixed to every relative endpoint. Empty falls back to
	// $TIMEGRAVE_API_URL, and then to relative paths.
	BaseURL string

	// Timeout bounds each request, including reading the body.
	Timeout time.Duration

	// Headers are sent with every request unless overridden per call.
	Headers map[string]string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenRemover registers the store cleared on 401 responses.
func WithTokenRemover(tr TokenRemover) Option {
	return func(c *Client) { c.tokens = tr }
}

// Client is a thin HTTP client for the TimeGrave REST API. It is safe for
// concurrent use; header mutations are visible to requests started after
// them.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	tokens     TokenRemover
	logger     *zap.Logger

	mu             sync.RWMutex
	headers        http.Header
	onUnauthorized func()
}

// New creates a Client from cfg.
func New(cfg Config, opts ...Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv(EnvBaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		headers:    headers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved base URL, possibly empty.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken sets the Authorization header for all subsequent requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Set("Authorization", "Bearer "+token)
}

// RemoveAuthToken drops the Authorization header.
func (c *Client) RemoveAuthToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Del("Authorization")
}

// AuthToken returns the bearer token currently applied, if any.
func (c *Client) AuthToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.headers.Get("Authorization")
	token, ok := strings.CutPrefix(v, "Bearer ")
	return token, ok && token != ""
}

// SetUnauthorizedHandler registers fn to run after a 401 has cleared the
// session. Passing nil unregisters it.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// RequestOptions describes a single call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Headers override the client defaults for this call only.
	Headers map[string]string

	// Body is sent verbatim.
	Body []byte
}

// Request performs a call and unwraps the success envelope. Every failure,
// including transport errors and timeouts, is returned as an *Error.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	var resp *Response
	err := c.send(ctx, endpoint, opts, func(httpResp *http.Response) error {
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}
		resp = unwrapSuccess(httpResp.StatusCode, body)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet})
}

// Post performs a POST request with an optional JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.withJSON(ctx, http.MethodPost, endpoint, body)
}

// Put performs a PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.withJSON(ctx, http.MethodPut, endpoint, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodDelete})
}

// PostMultipart posts an already encoded multipart body.
func (c *Client) PostMultipart(ctx context.Context, endpoint string, body []byte, contentType string) (*Response, error) {
	return c.Request(ctx, endpoint, RequestOptions{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": contentType},
		Body:    body,
	})
}

// Download streams a raw response body into w. It shares the header,
// timeout and error handling of Request but does not unwrap envelopes.
func (c *Client) Download(ctx context.Context, endpoint string, w io.Writer) (int64, error) {
	var n int64
	err := c.send(ctx, endpoint, RequestOptions{
		Method:  http.MethodGet,
		Headers: map[string]string{"Accept": "*/*"},
	}, func(httpResp *http.Response) error {
		var err error
		n, err = io.Copy(w, httpResp.Body)
		return err
	})
	return n, err
}

func (c *Client) withJSON(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	opts := RequestOptions{Method: method}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{
				Kind:    KindUnknown,
				Message: DefaultMessage(KindUnknown),
				Err:     fmt.Errorf("marshaling request body: %w", err),
			}
		}
		opts.Body = data
	}
	return c.Request(ctx, endpoint, opts)
}

// send builds and executes the request under its own timeout, classifies
// non-2xx responses, and hands 2xx responses to consume. The timeout
// context is released before send returns.
func (c *Client) send(
	ctx context.Context,
	endpoint string,
	opts RequestOptions,
	consume func(*http.Response) error,
) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	reqCtx, cancel := context.WithTimeoutCause(ctx, c.timeout, errRequestTimeout)
	defer cancel()

	var bodyReader io.Reader
	if opts.Body != nil {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.url(endpoint), bodyReader)
	if err != nil {
		return &Error{
			Kind:    KindUnknown,
			Message: DefaultMessage(KindUnknown),
			Err:     fmt.Errorf("creating request: %w", err),
		}
	}
	// The bearer token and the 401 session reset belong to the backend only.
	backend := c.targetsBackend(req.URL)
	req.Header = c.headerSnapshot()
	if !backend {
		req.Header.Del("Authorization")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	log := c.logger.With(zap.String("method", method), zap.String("endpoint", endpoint))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := transportError(reqCtx, err)
		log.Warn("request failed", zap.String("kind", string(apiErr.Kind)), zap.Error(err))
		return apiErr
	}
	defer resp.Body.Close()

	log = log.With(zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			apiErr := transportError(reqCtx, readErr)
			log.Warn("reading error body", zap.Error(readErr))
			return apiErr
		}
		apiErr := classifyError(resp.StatusCode, body)
		if resp.StatusCode == http.StatusUnauthorized && backend {
			c.handleUnauthorized()
		}
		log.Debug("request rejected", zap.String("kind", string(apiErr.Kind)))
		return apiErr
	}

	if err := consume(resp); err != nil {
		apiErr := transportError(reqCtx, err)
		log.Warn("reading response body", zap.Error(err))
		return apiErr
	}

	log.Debug("request completed")
	return nil
}

// handleUnauthorized clears the session: stored token first, then the
// header, then the registered handler.
func (c *Client) handleUnauthorized() {
	if c.tokens != nil {
		c.tokens.RemoveToken()
	}
	c.RemoveAuthToken()

	c.mu.RLock()
	handler := c.onUnauthorized
	c.mu.RUnlock()

	if handler != nil {
		handler()
	}
}

func (c *Client) headerSnapshot() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers.Clone()
}

// url joins endpoint onto the base URL. Absolute endpoints, such as signed
// download links, are used unchanged.
func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// targetsBackend reports whether u points at the configured base URL's
// scheme and host. With no base URL every request is relative and counts.
func (c *Client) targetsBackend(u *url.URL) bool {
	if c.baseURL == "" {
		return !u.IsAbs()
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// transportError classifies a failure that produced no usable response.
func transportError(reqCtx context.Context, err error) *Error {
	kind := KindNetwork
	if errors.Is(context.Cause(reqCtx), errRequestTimeout) {
		kind = KindTimeout
	}
	return &Error{
		Kind:    kind,
		Message: DefaultMessage(kind),
		Err:     err,
	}
}
