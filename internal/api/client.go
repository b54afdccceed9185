// Package api is the dashboard's shared HTTP client for the delivery-risk
// backend.
//
// A Client carries default headers that are added to every request. The
// Authorization default is owned by the session store, which sets it through
// SetAuthToken; nothing else writes that slot.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000/api"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20

	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger

	mu      sync.RWMutex
	headers http.Header
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client rooted at baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.Default(),
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetAuthToken sets the default bearer header, or deletes it for an empty token.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		c.headers.Del(headerAuthorization)
		return
	}
	c.headers.Set(headerAuthorization, "Bearer "+token)
}

// DefaultHeader reports a default header value and whether it is present.
func (c *Client) DefaultHeader(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values, ok := c.headers[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (c *Client) getJSON(ctx context.Context, path, fallback string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", fallback, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, fallback string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", fallback, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, fallback string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}

	c.mu.RLock()
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	c.mu.RUnlock()

	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "event", "api_request_failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return mapTransportError(err, fallback, requestID)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return mapTransportError(err, fallback, requestID)
	}
	c.logger.Debug("backend request", "event", "api_request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(started).Milliseconds(), "request_id", requestID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapResponseError(resp.StatusCode, data, fallback, requestID)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: fallback, RequestID: requestID, Cause: err}
	}
	return nil
}
