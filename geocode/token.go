package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// TokenSource yields the access token for the geocoding API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token.
type StaticTokenSource string

// Token returns the static token, or ErrNoToken when it is empty.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Compile-time interface checks.
var (
	_ TokenSource = StaticTokenSource("")
	_ TokenSource = (*EndpointTokenSource)(nil)
)

// EndpointTokenSource fetches a token from a token-issuing endpoint that
// answers POST requests with {"token": "..."}. A token is reused until
// maxAge passes (forever when maxAge is zero). Failures are never cached.
type EndpointTokenSource struct {
	http   *resty.Client
	url    string
	maxAge time.Duration
	logger *slog.Logger

	mu        sync.RWMutex
	token     string
	fetchedAt time.Time
	group     singleflight.Group
}

// TokenOption configures an EndpointTokenSource.
type TokenOption func(*EndpointTokenSource)

// WithAPIKey sends key as both "apikey" and bearer authorization headers,
// the form hosted edge-function gateways expect.
func WithAPIKey(key string) TokenOption {
	return func(s *EndpointTokenSource) {
		s.http.SetHeader("apikey", key).SetAuthToken(key)
	}
}

// WithMaxAge bounds how long a fetched token is reused.
func WithMaxAge(d time.Duration) TokenOption {
	return func(s *EndpointTokenSource) { s.maxAge = d }
}

// WithTokenLogger sets the structured logger.
func WithTokenLogger(l *slog.Logger) TokenOption {
	return func(s *EndpointTokenSource) { s.logger = l }
}

// NewEndpointTokenSource creates a token source for the endpoint at url.
func NewEndpointTokenSource(url string, opts ...TokenOption) *EndpointTokenSource {
	s := &EndpointTokenSource{
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		url:    url,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tokenFetchTimeout bounds the shared token request.
const tokenFetchTimeout = 15 * time.Second

type tokenResponse struct {
	Token string `json:"token"`
}

// Token returns the cached token or fetches a new one. Concurrent callers
// share a single in-flight request. The shared request is not tied to any
// one caller's context: a caller that gives up returns its own ctx error
// while the others keep waiting.
func (s *EndpointTokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenFetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Reset drops the cached token so the next call fetches a fresh one.
func (s *EndpointTokenSource) Reset() {
	s.mu.Lock()
	s.token = ""
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

func (s *EndpointTokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if s.maxAge > 0 && time.Since(s.fetchedAt) > s.maxAge {
		return "", false
	}
	return s.token, true
}

func (s *EndpointTokenSource) fetch(ctx context.Context) (string, error) {
	var out tokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		SetResult(&out).
		Post(s.url)
	if err != nil {
		return "", fmt.Errorf("geocode: fetch token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("geocode: fetch token: unexpected status %d", resp.StatusCode())
	}
	if out.Token == "" {
		return "", ErrNoToken
	}

	s.mu.Lock()
	s.token = out.Token
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("fetched geocoding token")
	return out.Token, nil
}
