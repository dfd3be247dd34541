// Package dune implements domain.QueryService against the Dune HTTP API.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dune-sync/internal/domain"
)

// Request headers understood by the API.
const (
	HeaderAPIKey    = "X-Dune-Api-Key"
	HeaderRequestID = "X-Request-ID"
)

const apiPrefix = "/api/v1"

// ClientOptions tunes transport behaviour. Zero values select defaults.
type ClientOptions struct {
	Timeout        time.Duration // per-request timeout (default 30s)
	RateLimitRPS   float64       // sustained requests per second; <= 0 disables limiting
	RateLimitBurst int           // burst capacity (default 1 when limiting)
	HTTPClient     *http.Client  // overrides Timeout when set
	Logger         *slog.Logger
}

// Client talks to the remote query service. Construct with NewClient.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ domain.QueryService = (*Client)(nil)

// NewClient creates a Client for baseURL. A missing API key is a configuration
// error and no client is returned.
func NewClient(baseURL, apiKey string, opts ...ClientOptions) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}
	var o ClientOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.Timeout}
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: httpClient,
		logger:     logger,
	}
	if o.RateLimitRPS > 0 {
		burst := o.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.RateLimitRPS), burst)
	}
	return c, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusNotFound
}

// Do sends a request to {BaseURL}/api/v1{path}. A non-nil body is JSON-encoded.
// The caller owns the response body.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u := c.BaseURL + apiPrefix + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := domain.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, c.APIKey)
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	c.logger.Debug("api request",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))
	return resp, nil
}

// ReadBody reads and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck
	return io.ReadAll(resp.Body)
}

// CheckError returns an *APIError for non-2xx responses and nil otherwise.
// The body is consumed and closed on error.
func CheckError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := ReadBody(resp)
	return newAPIError(resp.StatusCode, body)
}

// errorBody is the JSON error envelope returned by the API.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{HTTPStatus: status, Body: string(body), Message: strings.TrimSpace(string(body))}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	apiErr.Code = eb.Code
	if msg := errorMessage(eb.Error); msg != "" {
		apiErr.Message = msg
	} else if eb.Message != "" {
		apiErr.Message = eb.Message
	}
	return apiErr
}

// errorMessage accepts both {"error":"text"} and {"error":{"message":"text"}}.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}

// call performs a request, checks the status and decodes a JSON response into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if err := CheckError(resp); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	data, err := ReadBody(resp)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s %s: %w", method, path, err)
	}
	return nil
}
