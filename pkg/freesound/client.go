// Package freesound is a client for the Freesound APIv2, used to search and
// download Creative Commons audio.
//
// Search and preview downloads authenticate with a token header. Downloading
// original-quality files requires OAuth2; pass an oauth2.TokenSource via
// WithTokenSource to enable it.
package freesound

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the default Freesound API base URL.
	DefaultBaseURL = "https://freesound.org/apiv2"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default maximum number of retries.
	DefaultMaxRetries = 3
)

// Client is the Freesound API client.
type Client struct {
	// Sounds provides sound search and download operations.
	Sounds *SoundService

	config *clientConfig
	http   *httpClient
}

// clientConfig holds the client configuration.
type clientConfig struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	maxRetries  int
	tokenSource oauth2.TokenSource
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetry sets the maximum number of retries for transient errors.
func WithRetry(maxRetries int) Option {
	return func(c *clientConfig) {
		c.maxRetries = maxRetries
	}
}

// WithTokenSource enables OAuth2 authentication for original-quality
// downloads. Search and previews keep using the token header.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *clientConfig) {
		c.tokenSource = ts
	}
}

// NewClient creates a new Freesound API client.
//
// The token is the API key from the Freesound credentials page.
func NewClient(token string, opts ...Option) *Client {
	cfg := &clientConfig{
		token:      token,
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}

	c := &Client{
		config: cfg,
		http:   newHTTPClient(cfg),
	}
	c.Sounds = &SoundService{client: c}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.baseURL
}

// Timeout returns the configured request timeout.
func (c *Client) Timeout() time.Duration {
	return c.config.timeout
}

// MaxRetries returns the configured retry limit for transient errors.
func (c *Client) MaxRetries() int {
	return c.config.maxRetries
}
