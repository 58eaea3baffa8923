package homeconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// ContentType is the media type of Home Connect API requests and responses.
	ContentType = "application/vnd.bsh.sdk.v1+json"

	defaultTimeout = 30 * time.Second

	// maxResponseBody caps how much of a REST response is read.
	maxResponseBody = 4 << 20
)

// TokenSource supplies bearer tokens. *auth.Store implements it.
type TokenSource interface {
	AccessToken() string
	RefreshIfStale(ctx context.Context, failedAccessToken string) (*oauth2.Token, error)
}

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client issues REST calls against one Home Connect API base URL.
//
// Thread Safety: All methods are safe for concurrent use. Calls block the
// calling goroutine only.
type Client struct {
	baseURL      string
	tokens       TokenSource
	httpClient   *http.Client
	streamClient *http.Client
	language     string
	logger       Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStreamClient sets the HTTP client used for the event stream. It must
// not carry an overall request timeout.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) { c.streamClient = hc }
}

// WithTimeout sets the per-request timeout of the default REST client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLanguage sets the Accept-Language header, which localizes names.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL authenticated by tokens.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokens:       tokens,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
		logger:       noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// RefreshToken refreshes the bearer token unless failedAccessToken has
// already been replaced.
func (c *Client) RefreshToken(ctx context.Context, failedAccessToken string) error {
	_, err := c.tokens.RefreshIfStale(ctx, failedAccessToken)
	return err
}

// Do sends one request and returns the unwrapped data payload.
//
// body, when non-nil, is JSON encoded. A 401 triggers one token refresh
// and one retry; a second 401 is an *APIError wrapping ErrUnauthorized.
// An empty response body is an empty success ({}).
//
// Returns:
//   - json.RawMessage: the "data" member of the response envelope
//   - error: *APIError, *ParseError, *auth.AuthError, or ErrRequest
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	token := c.tokens.AccessToken()
	status, respBody, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Debug("access token rejected, refreshing", "method", method, "path", path)

		tok, err := c.tokens.RefreshIfStale(ctx, token)
		if err != nil {
			return nil, err
		}

		status, respBody, err = c.send(ctx, method, path, payload, tok.AccessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			apiErr := &APIError{Status: status, Err: ErrUnauthorized}
			if remote := parseRemoteError(respBody); remote != nil {
				apiErr.Key, apiErr.Description = remote.key(), remote.Description
			}
			return nil, apiErr
		}
	}

	data, err := decodeEnvelope(status, respBody)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "status", status, "error", err)
		return nil, err
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Accept", ContentType)
	if payload != nil {
		req.Header.Set("Content-Type", ContentType)
	}
	c.authorize(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading response: %w", ErrRequest, err)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) authorize(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
}

// envelope is the response wrapper of every REST call.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *remoteError    `json:"error"`
}

type remoteError struct {
	Key         string `json:"key"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (r *remoteError) key() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Code
}

func parseRemoteError(body []byte) *remoteError {
	var env envelope
	if json.Unmarshal(body, &env) != nil {
		return nil
	}
	return env.Error
}

func decodeEnvelope(status int, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		if status >= http.StatusBadRequest {
			return nil, &APIError{Status: status}
		}
		return json.RawMessage("{}"), nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Status: status, Body: body, Err: err}
	}

	switch {
	case env.Error != nil:
		return nil, &APIError{Status: status, Key: env.Error.key(), Description: env.Error.Description}
	case status >= http.StatusBadRequest:
		return nil, &APIError{Status: status}
	case len(env.Data) == 0 || string(env.Data) == "null":
		return nil, &APIError{Status: status, Err: ErrUnexpectedResponse}
	}
	return env.Data, nil
}
