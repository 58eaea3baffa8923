package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Home Connect OAuth2 endpoint paths, relative to the API base URL.
const (
	AuthorizePath = "/security/oauth/authorize"
	TokenPath     = "/security/oauth/token"
)

// refreshKey is the singleflight key; there is only ever one token.
const refreshKey = "refresh"

// Logger defines the logging interface used by the Store.
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

// ClientConfig identifies the OAuth2 client registered with Home Connect.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// BaseURL is the API base URL; the token endpoint is derived from it.
	BaseURL string
}

// Endpoint returns the OAuth2 endpoints for an API base URL.
func Endpoint(baseURL string) oauth2.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return oauth2.Endpoint{
		AuthURL:   base + AuthorizePath,
		TokenURL:  base + TokenPath,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Store holds the current OAuth2 token and refreshes it on demand.
//
// Thread Safety: All methods are safe for concurrent use. Refreshes are
// serialized; concurrent callers share the result of one refresh.
type Store struct {
	oauth      *oauth2.Config
	httpClient *http.Client

	mu    sync.RWMutex
	token *oauth2.Token

	group     singleflight.Group
	refreshes atomic.Int64

	cbMu      sync.RWMutex
	onUpdated func(*oauth2.Token)

	logger Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the HTTP client used to reach the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store seeded with initial. initial may carry only a
// refresh token; the first Refresh then obtains an access token.
func NewStore(cfg ClientConfig, initial *oauth2.Token, opts ...Option) *Store {
	s := &Store{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     Endpoint(cfg.BaseURL),
		},
		logger: noopLogger{},
	}
	if initial != nil {
		cp := *initial
		s.token = &cp
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnTokenUpdated registers fn to receive every newly refreshed token.
// fn runs synchronously on the refreshing goroutine.
func (s *Store) OnTokenUpdated(fn func(*oauth2.Token)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onUpdated = fn
}

// Current returns a copy of the held token, or nil if none is held.
func (s *Store) Current() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	cp := *s.token
	return &cp
}

// AccessToken returns the held access token, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// Refreshes returns how many refreshes reached the token endpoint.
func (s *Store) Refreshes() int64 {
	return s.refreshes.Load()
}

// Refresh unconditionally exchanges the refresh token for a new token.
// Concurrent calls share one exchange. Failures are *AuthError and are not
// retried here.
func (s *Store) Refresh(ctx context.Context) (*oauth2.Token, error) {
	return s.refresh(ctx, func() bool { return true })
}

// RefreshIfStale refreshes only if failedAccessToken is still the held
// access token. A caller whose request failed with a token that has
// already been replaced gets the current token without a second exchange,
// so one authentication failure episode costs at most one refresh.
func (s *Store) RefreshIfStale(ctx context.Context, failedAccessToken string) (*oauth2.Token, error) {
	stale := func() bool { return s.AccessToken() == failedAccessToken }
	if !stale() {
		return s.Current(), nil
	}
	return s.refresh(ctx, stale)
}

func (s *Store) refresh(ctx context.Context, needed func() bool) (*oauth2.Token, error) {
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		// Re-check inside the flight: a refresh that finished just before
		// this one started may already have replaced the stale token.
		if !needed() {
			return s.Current(), nil
		}
		// Detached so one caller's cancellation does not fail every waiter.
		return s.exchange(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tok, _ := res.Val.(*oauth2.Token) //nolint:errcheck // always *oauth2.Token
		if tok == nil {
			return nil, &AuthError{Err: fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoRefreshToken)}
		}
		cp := *tok
		return &cp, nil
	}
}

func (s *Store) exchange(ctx context.Context) (*oauth2.Token, error) {
	s.mu.RLock()
	var refreshToken string
	if s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	s.mu.RUnlock()

	if refreshToken == "" {
		return nil, &AuthError{Err: fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoRefreshToken)}
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	s.refreshes.Add(1)
	// A token with only a refresh token is never Valid, so the source
	// always performs the refresh grant.
	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		s.logger.Error("token refresh failed", "error", err)
		return nil, newAuthError(err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	s.logger.Info("token refreshed", "expiry", tok.Expiry)

	s.cbMu.RLock()
	fn := s.onUpdated
	s.cbMu.RUnlock()
	if fn != nil {
		cp := *tok
		fn(&cp)
	}

	return tok, nil
}

func newAuthError(err error) *AuthError {
	ae := &AuthError{Err: fmt.Errorf("%w: %w", ErrRefreshFailed, err)}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ae.Code = re.ErrorCode
		ae.Description = re.ErrorDescription
		if re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}
	}
	return ae
}
