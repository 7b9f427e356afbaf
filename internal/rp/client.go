package rp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a high-level client for the Report Portal API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a new Client for the given Report Portal instance.
// The bearerToken is sent as an Authorization header on every request.
func New(baseURL, bearerToken string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("rp: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		token:      bearerToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// Endpoint returns the instance base URL the client talks to.
func (c *Client) Endpoint() string { return c.baseURL }

// doJSON executes an HTTP request with a JSON body and decodes the JSON
// response into dst. If the response has an error status, it returns an
// *APIError.
func (c *Client) doJSON(ctx context.Context, method, url, operation string, body io.Reader, dst any) error {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.do(ctx, method, url, operation, body, contentType, dst)
}

// do executes an HTTP request with an arbitrary body content type. The log
// batch endpoint takes multipart payloads; everything else is JSON.
func (c *Client) do(ctx context.Context, method, url, operation string, body io.Reader, contentType string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var errRS ErrorRS
		if json.Unmarshal(respBody, &errRS) == nil && errRS.Message != "" {
			return newAPIError(operation, resp.StatusCode, errRS.ErrorCode, errRS.Message)
		}
		msg := string(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, 0, msg)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}
