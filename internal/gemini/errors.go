// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("gemini API key not configured")

	// ErrEmptyInput indicates the user text was empty after trimming.
	// Rejected before any network activity.
	ErrEmptyInput = errors.New("empty input")

	// ErrAuthFailed indicates an invalid or rejected API key. Not retried.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the provider returned HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrMalformedResponse indicates a transport-level success whose payload
	// does not have the expected candidate shape. Not retried; it means the
	// provider contract drifted.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTimeout indicates a single attempt exceeded its timeout budget.
	ErrTimeout = errors.New("request timed out")

	// ErrCancelled indicates the caller aborted the request.
	ErrCancelled = errors.New("request cancelled")
)

// =============================================================================
// TYPED ERRORS
// =============================================================================

// APIError represents an HTTP-level error from the provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gemini error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini error (HTTP %d): %s", e.Status, e.Message)
}

// RateLimitError carries the provider's Retry-After hint for a 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
	}
	return "rate limited"
}

// Is allows RateLimitError to be matched against ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// StreamError represents a stream that broke before the terminal marker,
// preserving any partial content received.
type StreamError struct {
	Partial string // Content accumulated before the disconnect
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream interrupted (partial content, %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// IsTransient reports whether err is eligible for a retry: 5xx responses,
// rate limiting, attempt timeouts, network failures and mid-stream
// disconnects. Cancellation and client-side errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrNotConfigured) {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) {
		return true
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		// A disconnect mid-stream is retryable unless the underlying cause
		// was cancellation or a fatal response.
		if streamErr.Err != nil {
			return IsTransient(streamErr.Err) || !isClassified(streamErr.Err)
		}
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}

	// Connection-level failures from the HTTP client.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !errors.Is(urlErr, context.Canceled)
	}

	return false
}

// isClassified reports whether err belongs to this package's taxonomy.
func isClassified(err error) bool {
	var apiErr *APIError
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrMalformedResponse) || errors.As(err, &apiErr)
}

// RetryAfterHint extracts the provider's Retry-After hint, or zero when the
// error carries none.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// PartialText extracts any partial content attached to a stream failure.
func PartialText(err error) string {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Partial
	}
	return ""
}
