package freesound

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const userAgent = "mixcraft-go/1.0"

// httpClient handles HTTP communication with the Freesound API.
type httpClient struct {
	client      *http.Client
	baseURL     string
	token       string
	maxRetries  int
	tokenSource oauth2.TokenSource
}

// newHTTPClient creates a new HTTP client.
func newHTTPClient(cfg *clientConfig) *httpClient {
	return &httpClient{
		client:      cfg.httpClient,
		baseURL:     cfg.baseURL,
		token:       cfg.token,
		maxRetries:  cfg.maxRetries,
		tokenSource: cfg.tokenSource,
	}
}

// get performs a GET request with retry support.
func (h *httpClient) get(ctx context.Context, path string, params url.Values, result any) error {
	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, ...
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := h.doGet(ctx, path, params, result)
		if err == nil {
			return nil
		}

		lastErr = err

		if apiErr, ok := AsError(err); ok {
			if !apiErr.Retryable() {
				return err
			}
		}
		// Network errors are retryable.
	}

	return lastErr
}

// doGet performs a single GET request with token authentication.
func (h *httpClient) doGet(ctx context.Context, path string, params url.Values, result any) error {
	u := h.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+h.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(body, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// download streams rawURL into w using token authentication.
func (h *httpClient) download(ctx context.Context, rawURL string, w io.Writer) error {
	return h.stream(ctx, rawURL, "Token "+h.token, w)
}

// downloadOAuth streams rawURL into w using a bearer token from the
// configured token source. Original-quality downloads require it.
func (h *httpClient) downloadOAuth(ctx context.Context, rawURL string, w io.Writer) error {
	if h.tokenSource == nil {
		return &Error{Detail: "oauth2 token source not configured", HTTPStatus: http.StatusUnauthorized}
	}
	tok, err := h.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("oauth2 token: %w", err)
	}
	return h.stream(ctx, rawURL, "Bearer "+tok.AccessToken, w)
}

func (h *httpClient) stream(ctx context.Context, rawURL, auth string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return parseError(body, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("copy body: %w", err)
	}
	return nil
}

// parseError parses an error response body.
func parseError(body []byte, httpStatus int) error {
	var e Error
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		e.HTTPStatus = httpStatus
		return &e
	}
	return &Error{
		Detail:     string(body),
		HTTPStatus: httpStatus,
	}
}
