// Package api is the HTTP client for the telematics backend.
//
// Only the three read endpoints the front end consumes are covered:
// health, auth/debug (session status) and auth/authorize-url.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/fleetview/iox"
)

// DefaultBaseURL is used when no service base address is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 10 * time.Second

// Config configures the backend client.
type Config struct {
	// BaseURL is the service base address (default DefaultBaseURL).
	BaseURL string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// HTTPClient overrides the transport (tests, proxies).
	HTTPClient *http.Client
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AuthStatus is the body of GET /auth/debug.
// Only the token fields drive the session state; the rest are diagnostics.
type AuthStatus struct {
	UserTokenActive  *bool   `json:"user_token_active,omitempty"`
	UserTokenPreview *string `json:"user_token_preview,omitempty"`
	AuthBase         string  `json:"auth_base,omitempty"`
	RedirectURI      string  `json:"tp_redirect_uri,omitempty"`
	ClientIDSet      *bool   `json:"tp_client_id_set,omitempty"`
	ClientSecretSet  *bool   `json:"tp_client_secret_set,omitempty"`
	Scopes           string  `json:"scopes,omitempty"`
}

// Active reports whether the backend holds a live user token.
func (s *AuthStatus) Active() bool {
	return s != nil && s.UserTokenActive != nil && *s.UserTokenActive
}

// Preview returns the short token identifier, or "".
func (s *AuthStatus) Preview() string {
	if s == nil || s.UserTokenPreview == nil {
		return ""
	}
	return *s.UserTokenPreview
}

type authorizeURLResponse struct {
	URL string `json:"url"`
}

// ErrEmptyAuthorizeURL is returned when authorize-url answers without a URL.
var ErrEmptyAuthorizeURL = errors.New("authorize-url response has no url")

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Endpoint string
	Code     int
	Status   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Endpoint, e.Status)
}

// Client calls the backend read endpoints.
type Client struct {
	base   string
	client *http.Client
}

// New creates a backend client from the given config.
// Returns an error if the base URL is not absolute.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid api base %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base %q: scheme must be http or https", base)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: httpClient,
	}, nil
}

// BaseURL returns the normalized service base address.
func (c *Client) BaseURL() string {
	return c.base
}

// Health probes GET {base}/health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthStatus reads GET {base}/auth/debug.
func (c *Client) AuthStatus(ctx context.Context) (*AuthStatus, error) {
	var out AuthStatus
	if err := c.getJSON(ctx, "/auth/debug", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthorizeURL reads GET {base}/auth/authorize-url and returns the external
// OAuth authorization URL.
func (c *Client) AuthorizeURL(ctx context.Context) (string, error) {
	var out authorizeURLResponse
	if err := c.getJSON(ctx, "/auth/authorize-url", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", ErrEmptyAuthorizeURL
	}
	return out.URL, nil
}

// getJSON performs a single GET and decodes a 2xx JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", path, err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: path, Code: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
