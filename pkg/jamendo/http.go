package jamendo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpClient handles HTTP communication with the Jamendo API.
type httpClient struct {
	client     *http.Client
	baseURL    string
	clientID   string
	maxRetries int
}

// newHTTPClient creates a new HTTP client.
func newHTTPClient(cfg *clientConfig) *httpClient {
	return &httpClient{
		client:     cfg.httpClient,
		baseURL:    cfg.baseURL,
		clientID:   cfg.clientID,
		maxRetries: cfg.maxRetries,
	}
}

// apiHeaders is the status wrapper every Jamendo response carries.
type apiHeaders struct {
	Status       string `json:"status"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"error_message"`
	ResultsCount int    `json:"results_count"`
}

// get performs a GET request with retry support, decoding the results array
// into result.
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

// doGet performs a single GET request.
func (h *httpClient) doGet(ctx context.Context, path string, params url.Values, result any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("client_id", h.clientID)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
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

	var envelope struct {
		Headers apiHeaders      `json:"headers"`
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if envelope.Headers.Code != 0 {
		return &Error{
			Code:       envelope.Headers.Code,
			Message:    envelope.Headers.ErrorMessage,
			HTTPStatus: resp.StatusCode,
		}
	}

	if result != nil && envelope.Results != nil {
		if err := json.Unmarshal(envelope.Results, result); err != nil {
			return fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return nil
}

// download streams the body of url into w. Download URLs point at the CDN,
// not the API host, so no retry wrapping or client_id is applied.
func (h *httpClient) download(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
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

const userAgent = "mixcraft-go/1.0"

// parseError parses an error response body.
func parseError(body []byte, httpStatus int) error {
	var envelope struct {
		Headers apiHeaders `json:"headers"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Headers.ErrorMessage != "" {
		return &Error{
			Code:       envelope.Headers.Code,
			Message:    envelope.Headers.ErrorMessage,
			HTTPStatus: httpStatus,
		}
	}
	return &Error{
		Code:       httpStatus,
		Message:    string(body),
		HTTPStatus: httpStatus,
	}
}
