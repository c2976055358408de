// Package api is the HTTP client for the finance REST API. Every response
// body is wrapped as {"data": ...}; every call but login and register carries
// the bearer token found in its context.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pfm/internal/log"
)

const (
	defaultTimeout = 15 * time.Second
	loginPath      = "/auth/login"
	registerPath   = "/auth/register"
	maxErrorBody   = 64 << 10
)

// ErrMissingToken is returned when an authenticated call is made without a
// bearer token in the context.
var ErrMissingToken = errors.New("api: no session token")

// Error is a non-2xx answer from the API. Message carries the server's own
// "message" field when it sent one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message returns the text worth showing a user for err.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// Observer is told about every completed API call.
type Observer func(method, path string, status int, elapsed time.Duration, err error)

// Client talks to the finance REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	observe    Observer
	logger     *log.Logger
}

var _ ClientInterface = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// NewClient creates a client rooted at baseURL, e.g. http://host/api/v1.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log.Default().WithComponent(log.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type tokenKey struct{}

// WithToken returns a context whose API calls carry token as a bearer credential.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token stored by WithToken.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// envelope is the uniform {"data": ...} wrapper around every response body.
type envelope[T any] struct {
	Data T `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func isPublic(path string) bool {
	return strings.Contains(path, loginPath) || strings.Contains(path, registerPath)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !isPublic(path) {
		tok := TokenFrom(ctx)
		if tok == "" {
			return nil, ErrMissingToken
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send executes req and returns the raw body of a 2xx response.
func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	status := 0
	var err error
	defer func() {
		elapsed := time.Since(start)
		if c.observe != nil {
			c.observe(req.Method, req.URL.Path, status, elapsed, err)
		}
		c.logCall(req, status, elapsed, err)
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to execute request: %w", err)
		return nil, err
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err = decodeError(resp.StatusCode, raw)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return nil, err
	}
	return body, nil
}

// logCall keeps 4xx answers at debug: they are the user's to fix and the
// HTTP layer reports them.
func (c *Client) logCall(req *http.Request, status int, elapsed time.Duration, err error) {
	ctx := req.Context()
	args := []any{log.FieldMethod, req.Method, log.FieldPath, req.URL.Path, log.FieldStatusCode, status, log.FieldDuration, elapsed.Milliseconds()}
	switch {
	case status == 0 && err != nil:
		fields := log.NewFields().WithErrorType(log.ErrorTypeNetwork).WithError(err)
		c.logger.WarnContext(ctx, "API unreachable", append(args, fields.ToSlice()...)...)
	case status >= 500:
		fields := log.NewFields().WithErrorType(log.ErrorTypeUpstream).WithError(err)
		c.logger.WarnContext(ctx, "API call failed", append(args, fields.ToSlice()...)...)
	default:
		c.logger.DebugContext(ctx, "API call", args...)
	}
}

func decodeError(status int, raw []byte) *Error {
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		if eb.Message != "" {
			return &Error{Status: status, Message: eb.Message}
		}
		if eb.Error != "" {
			return &Error{Status: status, Message: eb.Error}
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" || strings.HasPrefix(msg, "<") || strings.HasPrefix(msg, "{") {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}

// doJSON sends in (if non-nil) as JSON and decodes the envelope's data into out
// (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	raw, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var env envelope[T]
	err := c.doJSON(ctx, http.MethodGet, path, nil, &env)
	return env.Data, err
}

// list is get for collection endpoints; a missing data field is an empty list.
func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	items, err := get[[]T](ctx, c, path)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func write[T any](ctx context.Context, c *Client, method, path string, in any) (T, error) {
	var env envelope[T]
	err := c.doJSON(ctx, method, path, in, &env)
	return env.Data, err
}

// Ping reports whether the API answers at all. Any response below 500 counts,
// since the root path may well be a 404.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 500 {
		return &Error{Status: resp.StatusCode, Message: "api unhealthy"}
	}
	return nil
}
