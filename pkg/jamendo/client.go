// Package jamendo is a client for the Jamendo v3.0 API, used to search and
// download royalty-free music tracks.
package jamendo

import (
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the default Jamendo API base URL.
	DefaultBaseURL = "https://api.jamendo.com/v3.0"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default maximum number of retries.
	DefaultMaxRetries = 3
)

// Client is the Jamendo API client.
type Client struct {
	// Tracks provides track search and download operations.
	Tracks *TrackService

	config *clientConfig
	http   *httpClient
}

// clientConfig holds the client configuration.
type clientConfig struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
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

// NewClient creates a new Jamendo API client.
//
// The clientID is required and can be obtained from the Jamendo developer
// portal.
func NewClient(clientID string, opts ...Option) *Client {
	cfg := &clientConfig{
		clientID:   clientID,
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
	c.Tracks = &TrackService{client: c}
	return c
}

// ClientID returns the configured client ID.
func (c *Client) ClientID() string {
	return c.config.clientID
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
