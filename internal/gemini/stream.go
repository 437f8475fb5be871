// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxEventSize is the maximum allowed size for a single SSE event (64KB).
const MaxEventSize = 64 * 1024

// sharedStreamingClient is used for streaming requests. No client timeout;
// the attempt budget is enforced through the request context.
var sharedStreamingClient = &http.Client{
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
// FRAGMENTS
// =============================================================================

// Fragment is one partial chunk of a streamed answer. Fragments arrive in
// generation order and must be concatenated in that order.
type Fragment struct {
	Text         string
	Final        bool   // terminal marker: the provider signalled completion
	FinishReason string // set when Final
}

// fragmentFromChunk converts a streamed response chunk to a Fragment.
// Returns false for chunks carrying no usable candidate.
func fragmentFromChunk(chunk *GenerateContentResponse) (Fragment, bool) {
	if len(chunk.Candidates) == 0 {
		return Fragment{}, false
	}
	cand := chunk.Candidates[0]

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}

	return Fragment{
		Text:         text.String(),
		Final:        cand.FinishReason != "",
		FinishReason: cand.FinishReason,
	}, true
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event and returns its data payload.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// A stream cut mid-event leaves a final unterminated
				// line; it still belongs to the event being flushed.
				line = bytes.TrimRight(line, "\r\n")
				if bytes.HasPrefix(line, []byte("data:")) {
					dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
				}
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > MaxEventSize {
				return nil, fmt.Errorf("SSE event too large: %d bytes", size)
			}
			dataLines = append(dataLines, data)
		}
		// Ignore other fields (event:, id:, retry:, comments)
	}
}

// =============================================================================
// STREAMING CLIENT
// =============================================================================

// StreamClient is the streaming transport: one request out, an ordered
// sequence of fragments back, terminated by an explicit completion marker
// or channel closure. It implements Transport.
type StreamClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewStreamClient creates a streaming client with the given API key.
func NewStreamClient(apiKey string) *StreamClient {
	return &StreamClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: sharedStreamingClient,
	}
}

// WithEndpoint sets a custom endpoint base URL for the streaming channel.
func (c *StreamClient) WithEndpoint(url string) *StreamClient {
	if url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithTimeout sets the per-attempt timeout covering the whole stream.
func (c *StreamClient) WithTimeout(timeout time.Duration) *StreamClient {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithHTTPClient sets a custom HTTP client. Used by tests.
func (c *StreamClient) WithHTTPClient(hc *http.Client) *StreamClient {
	c.httpClient = hc
	return c
}

// IsConfigured returns true if the client has an API key configured.
func (c *StreamClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Send opens the stream, aggregates fragments in arrival order and returns
// the normalized Answer once the terminal marker arrives. A disconnect
// before the marker yields a StreamError carrying the accumulated partial
// text, so the caller can retry wholesale or surface the partial answer.
func (c *StreamClient) Send(ctx context.Context, req *GenerateContentRequest) (*Answer, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	requestURL := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.baseURL, req.Model)

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
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	logRequest(httpReq)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	httpReq.Header.Del("x-goog-api-key")
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()
	logResponse(resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		return nil, handleErrorResponse(resp, body)
	}

	acc := NewAccumulator()
	if err := c.processStream(attemptCtx, resp.Body, acc); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, &StreamError{Partial: acc.Text(), Err: err}
	}

	if !acc.Finished() {
		// Channel closed without the terminal marker.
		return nil, &StreamError{Partial: acc.Text(), Err: io.ErrUnexpectedEOF}
	}

	return acc.Answer(), nil
}

// processStream reads SSE events, converts them to fragments and feeds the
// accumulator until the terminal marker, stream end or an error.
func (c *StreamClient) processStream(ctx context.Context, body io.Reader, acc *Accumulator) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var chunk GenerateContentResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed events rather than aborting the stream.
			continue
		}

		frag, ok := fragmentFromChunk(&chunk)
		if !ok {
			continue
		}

		acc.Add(frag)
		if frag.Final {
			return nil
		}
	}
}
