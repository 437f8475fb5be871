// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Configuration constants for the generative-language API.
const (
	// DefaultBaseURL is the base URL for the generative-language API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultTimeout is the default per-attempt timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// userAgent identifies this client to the API.
	userAgent = "shellmind/0.2.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client for all unary requests; the per-attempt timeout is
// applied through the request context, not here.
// SECURITY: TLS 1.2+ required.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// UNARY CLIENT
// =============================================================================

// Client is the unary REST transport: one request, one full payload.
// It implements Transport.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a unary client with the given API key. An empty key
// still yields a usable value, but Send fails with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: sharedHTTPClient,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithHTTPClient sets a custom HTTP client. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Send performs one generateContent request and parses the payload into a
// normalized Answer. Each call gets a fresh timeout budget; retry policy
// belongs to the caller.
func (c *Client) Send(ctx context.Context, req *GenerateContentRequest) (*Answer, error) {
	resp, err := c.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return ExtractAnswer(resp)
}

// generate performs the HTTP round trip and returns the raw response body.
func (c *Client) generate(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	requestURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, req.Model)

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, requestURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	logRequest(httpReq)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)

	// SECURITY: Clear the key header immediately after the round trip so it
	// cannot leak through request dumps.
	httpReq.Header.Del("x-goog-api-key")

	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()
	logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp, body)
	}

	var genResp GenerateContentResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &genResp, nil
}

// setHeaders sets the required headers for API requests.
// SECURITY: The key travels in a header, never in the URL, so it stays out
// of access logs.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// APIKeyMasked returns a masked form of the API key for display.
// SECURITY: Never exposes key fragments; uses a fingerprint instead.
func (c *Client) APIKeyMasked() string {
	if c.apiKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.apiKey), KeyFingerprint(c.apiKey))
}

// KeyFingerprint returns a short SHA-256 fingerprint of an API key, suitable
// for logs and display without exposing the key itself.
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// logRequest logs an API request without exposing sensitive data.
// Headers and body are never logged; they may contain the key or user text.
func logRequest(req *http.Request) {
	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs status and duration only.
func logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, resp.Status, duration)
}

// classifyTransportErr maps a failed round trip to the error taxonomy,
// distinguishing caller cancellation from an exhausted attempt budget.
func classifyTransportErr(parent context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("request failed: %w", err)
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	// Read one byte past the limit so a body of exactly MaxResponseSize
	// is still accepted.
	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to the error taxonomy.
// 5xx is transient; 429 is transient and carries the Retry-After hint when
// present; remaining 4xx responses are fatal.
func handleErrorResponse(resp *http.Response, body []byte) error {
	statusCode := resp.StatusCode

	var apiErr apiErrorResponse
	message := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		code = apiErr.Error.Status
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp)}
	default:
		return &APIError{Status: statusCode, Code: code, Message: message}
	}
}

// parseRetryAfter reads the Retry-After header as seconds or an HTTP date.
// Returns zero when absent or unparsable.
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}
