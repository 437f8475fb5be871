// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shellmind/shellmind/internal/gemini"
	"github.com/shellmind/shellmind/internal/history"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// defaultMaxRetries bounds total attempts per turn.
	defaultMaxRetries = 3

	// defaultContextWindow is the number of retained exchanges.
	defaultContextWindow = 10

	// defaultRequestsPerMinute throttles outbound traffic to stay under
	// provider quotas regardless of how fast the user types.
	defaultRequestsPerMinute = 30
)

// ErrBusy indicates a turn is already in flight. The session processes one
// turn at a time; concurrent input must wait or cancel the active turn.
var ErrBusy = errors.New("a request is already in flight")

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds session tuning parameters.
type Config struct {
	// Model is the provider model identifier.
	Model string

	// Temperature controls generation randomness.
	Temperature float64

	// SystemPrompt is prepended to every request when set.
	SystemPrompt string

	// ContextWindow is the number of retained turns. An exchange is two
	// turns, user plus model.
	ContextWindow int

	// MaxRetries bounds total attempts per turn, first attempt included.
	MaxRetries int

	// RetryBaseDelay overrides the backoff base. Zero means the default.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff. Zero means the default.
	RetryMaxDelay time.Duration

	// RequestsPerMinute throttles outbound attempts. Zero means the default.
	RequestsPerMinute int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Model:             "gemini-1.5-flash",
		Temperature:       0.2,
		ContextWindow:     defaultContextWindow,
		MaxRetries:        defaultMaxRetries,
		RetryBaseDelay:    retryBaseDelay,
		RetryMaxDelay:     retryMaxDelay,
		RequestsPerMinute: defaultRequestsPerMinute,
	}
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = retryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = retryMaxDelay
	}
	if c.ContextWindow < 0 {
		c.ContextWindow = 0
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = defaultRequestsPerMinute
	}
	return c
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one interactive conversation. It coordinates history, request
// construction and a transport, and enforces the retry policy for transient
// failures. Methods are safe for concurrent use, but only one turn runs at a
// time.
type Session struct {
	mu        sync.Mutex
	busy      bool
	history   *history.History
	transport gemini.Transport
	cfg       Config
	limiter   *rate.Limiter

	// Stats
	startTime    time.Time
	lastActivity time.Time
	turnCount    int
	retryCount   int
}

// New creates a session driving the given transport.
func New(transport gemini.Transport, cfg Config) *Session {
	cfg = cfg.normalize()
	now := time.Now()
	return &Session{
		history:      history.New(cfg.ContextWindow),
		transport:    transport,
		cfg:          cfg,
		limiter:      rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute),
		startTime:    now,
		lastActivity: now,
	}
}

// SetTransport swaps the transport for subsequent turns. Used when config
// reload switches between the HTTP and streaming APIs.
func (s *Session) SetTransport(t gemini.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

// SetConfig applies new tuning parameters to subsequent turns. The history
// window is resized in place; surplus old exchanges are evicted.
func (s *Session) SetConfig(cfg Config) {
	cfg = cfg.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.ContextWindow != s.cfg.ContextWindow {
		s.history.SetCap(cfg.ContextWindow)
	}
	if cfg.RequestsPerMinute != s.cfg.RequestsPerMinute {
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	s.cfg = cfg
}

// History returns the conversation history.
func (s *Session) History() *history.History {
	return s.history
}

// =============================================================================
// TURN PROCESSING
// =============================================================================

// HandleInput processes one user turn: validate, build the request from the
// current history snapshot, send with bounded retries, and commit the
// exchange on success.
//
// On failure history is untouched and the error classifies the cause. If a
// streamed response broke after partial content and retries ran out, the
// partial is returned alongside the error with FinishedCleanly=false so the
// caller can display it; it is never committed to history.
func (s *Session) HandleInput(ctx context.Context, input string) (*gemini.Answer, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	transport := s.transport
	cfg := s.cfg
	limiter := s.limiter
	snapshot := s.history.Snapshot()
	s.lastActivity = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	req, err := gemini.BuildRequest(snapshot, input, gemini.Params{
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		SystemPrompt: cfg.SystemPrompt,
	})
	if err != nil {
		return nil, err
	}

	answer, err := s.sendWithRetry(ctx, transport, limiter, cfg, req)
	if err != nil {
		// Surface any partial content without committing it.
		if partial := gemini.PartialText(err); partial != "" {
			return &gemini.Answer{Text: partial, FinishedCleanly: false}, err
		}
		return nil, err
	}

	// The retried request was rebuilt from the same snapshot every attempt,
	// so a late success commits exactly one exchange.
	userText := req.Contents[len(req.Contents)-1].Parts[0].Text
	s.mu.Lock()
	s.history.AppendExchange(userText, answer.Text)
	s.turnCount++
	s.lastActivity = time.Now()
	s.mu.Unlock()

	return answer, nil
}

// sendWithRetry drives the transport with exponential backoff for transient
// failures. Fatal errors abort immediately; the provider's Retry-After hint
// takes precedence over the computed backoff.
func (s *Session) sendWithRetry(ctx context.Context, transport gemini.Transport, limiter *rate.Limiter, cfg Config, req *gemini.GenerateContentRequest) (*gemini.Answer, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
			if hint := gemini.RetryAfterHint(lastErr); hint > delay {
				delay = hint
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", gemini.ErrCancelled, ctx.Err())
			case <-time.After(delay):
			}
			s.mu.Lock()
			s.retryCount++
			s.mu.Unlock()
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", gemini.ErrCancelled, err)
		}

		answer, err := transport.Send(ctx, req)
		if err == nil {
			return answer, nil
		}
		if !gemini.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns the delay before the next retry.
func calculateBackoff(attempt int, base, max time.Duration) time.Duration {
	// Exponential backoff: 500ms, 1000ms, 2000ms, etc.
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Reset clears the conversation history and turn counters. Configuration and
// transport are retained.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.turnCount = 0
	s.retryCount = 0
	s.startTime = time.Now()
	s.lastActivity = s.startTime
}

// Busy reports whether a turn is currently in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Status represents the current session status.
type Status struct {
	Model         string
	StartTime     time.Time
	Duration      time.Duration
	IdleTime      time.Duration
	Turns         int
	Retries       int
	HistoryLen    int
	ContextWindow int
	Busy          bool
}

// GetStatus returns a point-in-time snapshot for status displays.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	return Status{
		Model:         s.cfg.Model,
		StartTime:     s.startTime,
		Duration:      now.Sub(s.startTime),
		IdleTime:      now.Sub(s.lastActivity),
		Turns:         s.turnCount,
		Retries:       s.retryCount,
		HistoryLen:    s.history.Len(),
		ContextWindow: s.cfg.ContextWindow,
		Busy:          s.busy,
	}
}
