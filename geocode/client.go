// Package geocode resolves free-text addresses to coordinates through a
// Mapbox-compatible forward geocoding API, and obtains the access token that
// API requires.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
)

var (
	// ErrNoResults is returned when the API finds no match for an address.
	ErrNoResults = errors.New("geocode: no results")

	// ErrMalformedResponse is returned when the first result has no usable
	// [lng, lat] center.
	ErrMalformedResponse = errors.New("geocode: malformed response")

	// ErrNoToken is returned by token sources that could not produce a token.
	ErrNoToken = errors.New("geocode: no access token")
)

// DefaultBaseURL is the public Mapbox API host.
const DefaultBaseURL = "https://api.mapbox.com"

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Forward(ctx context.Context, address, token string) (*branch.Coordinates, error)
}

// Compile-time interface check.
var _ Geocoder = (*Client)(nil)

// Client calls the Mapbox forward geocoding endpoint.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL    string
	timeout    time.Duration
	retryCount int
	logger     *slog.Logger
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) ClientOption { return func(c *clientConfig) { c.baseURL = u } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption { return func(c *clientConfig) { c.timeout = d } }

// WithRetryCount sets how many times transport failures are retried.
func WithRetryCount(n int) ClientOption { return func(c *clientConfig) { c.retryCount = n } }

// WithClientLogger sets the structured logger.
func WithClientLogger(l *slog.Logger) ClientOption { return func(c *clientConfig) { c.logger = l } }

// NewClient creates a geocoding client.
func NewClient(opts ...ClientOption) *Client {
	cfg := clientConfig{
		baseURL:    DefaultBaseURL,
		timeout:    10 * time.Second,
		retryCount: 1,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.baseURL).
		SetTimeout(cfg.timeout).
		SetRetryCount(cfg.retryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, logger: cfg.logger}
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
}

// Forward geocodes address and returns the first result's center.
func (c *Client) Forward(ctx context.Context, address, token string) (*branch.Coordinates, error) {
	var out featureCollection
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetQueryParams(map[string]string{
			"access_token": token,
			"limit":        "1",
		}).
		SetResult(&out).
		Get("/geocoding/v5/mapbox.places/{address}.json")
	if err != nil {
		return nil, fmt.Errorf("geocode: request %q: %w", address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocode: %q: unexpected status %d", address, resp.StatusCode())
	}
	if len(out.Features) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoResults, address)
	}

	center := out.Features[0].Center
	if len(center) != 2 {
		return nil, fmt.Errorf("%w: center has %d values", ErrMalformedResponse, len(center))
	}

	c.logger.Debug("geocoded address",
		"address", address,
		"place_name", out.Features[0].PlaceName,
	)
	return &branch.Coordinates{Lng: center[0], Lat: center[1]}, nil
}
