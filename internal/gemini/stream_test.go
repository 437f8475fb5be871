// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// sseEvent formats one chunk as an SSE data event.
func sseEvent(text, finishReason string) string {
	if finishReason != "" {
		return fmt.Sprintf("data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]},\"finishReason\":%q}]}\n\n", text, finishReason)
	}
	return fmt.Sprintf("data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]}}]}\n\n", text)
}

// sseServer serves a fixed sequence of SSE events with flushing between them.
func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("test server does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			io.WriteString(w, ev)
			flusher.Flush()
		}
	}))
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

// TestSSEReaderEvents verifies event framing: data lines, blank separators,
// ignored fields, and the EOF flush.
func TestSSEReaderEvents(t *testing.T) {
	input := "event: message\ndata: {\"a\":1}\n\n: comment line\ndata: part one\ndata: part two\n\ndata: trailing"
	reader := NewSSEReader(strings.NewReader(input))

	first, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("first event failed: %v", err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("first event = %q", first)
	}

	second, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("second event failed: %v", err)
	}
	if string(second) != "part one\npart two" {
		t.Errorf("second event = %q", second)
	}

	// Unterminated final event is flushed at EOF.
	third, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("third event failed: %v", err)
	}
	if string(third) != "trailing" {
		t.Errorf("third event = %q", third)
	}

	if _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("after last event err = %v, want io.EOF", err)
	}
}

// TestSSEReaderSizeGuard verifies runaway events are rejected.
func TestSSEReaderSizeGuard(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	reader := NewSSEReader(strings.NewReader(input))
	if _, err := reader.ReadEvent(); err == nil {
		t.Fatal("oversized event should fail")
	}
}

// TestFragmentFromChunk verifies chunk-to-fragment conversion.
func TestFragmentFromChunk(t *testing.T) {
	frag, ok := fragmentFromChunk(&GenerateContentResponse{Candidates: []Candidate{
		{Content: Content{Parts: []Part{{Text: "Hel"}, {Text: "lo"}}}, FinishReason: "STOP"},
	}})
	if !ok {
		t.Fatal("usable chunk rejected")
	}
	if frag.Text != "Hello" || !frag.Final || frag.FinishReason != "STOP" {
		t.Errorf("fragment = %+v", frag)
	}

	if _, ok := fragmentFromChunk(&GenerateContentResponse{}); ok {
		t.Error("chunk without candidates should be rejected")
	}
}

// =============================================================================
// STREAMING TRANSPORT TESTS
// =============================================================================

// TestStreamSendAggregates verifies fragments are concatenated in arrival
// order and the terminal marker closes the answer cleanly.
func TestStreamSendAggregates(t *testing.T) {
	server := sseServer(t,
		sseEvent("Hel", ""),
		sseEvent("lo", ""),
		sseEvent(", world", "STOP"),
	)
	defer server.Close()

	client := NewStreamClient("test-key").WithEndpoint(server.URL)
	ans, err := client.Send(context.Background(), testRequest(t, "greet me"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ans.Text != "Hello, world" {
		t.Errorf("answer = %q, want %q", ans.Text, "Hello, world")
	}
	if !ans.FinishedCleanly {
		t.Error("answer with terminal marker should be finished cleanly")
	}
}

// TestStreamDisconnectKeepsPartial verifies the stream closing before the
// terminal marker yields the accumulated partial text inside the error.
func TestStreamDisconnectKeepsPartial(t *testing.T) {
	server := sseServer(t,
		sseEvent("Hel", ""),
		sseEvent("lo", ""),
	)
	defer server.Close()

	client := NewStreamClient("test-key").WithEndpoint(server.URL)
	ans, err := client.Send(context.Background(), testRequest(t, "greet me"))
	if ans != nil {
		t.Errorf("answer = %+v, want nil on disconnect", ans)
	}

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("error = %v, want StreamError", err)
	}
	if streamErr.Partial != "Hello" {
		t.Errorf("partial = %q, want %q", streamErr.Partial, "Hello")
	}
	if !IsTransient(err) {
		t.Error("mid-stream disconnect should be retry eligible")
	}
	if got := PartialText(err); got != "Hello" {
		t.Errorf("PartialText = %q", got)
	}
}

// TestStreamSkipsMalformedEvents verifies a garbage event in the middle of a
// stream is skipped without losing the surrounding fragments.
func TestStreamSkipsMalformedEvents(t *testing.T) {
	server := sseServer(t,
		sseEvent("Hel", ""),
		"data: this is not json\n\n",
		sseEvent("lo", "STOP"),
	)
	defer server.Close()

	client := NewStreamClient("test-key").WithEndpoint(server.URL)
	ans, err := client.Send(context.Background(), testRequest(t, "greet me"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ans.Text != "Hello" {
		t.Errorf("answer = %q, want %q", ans.Text, "Hello")
	}
}

// TestStreamStatusError verifies a non-200 stream open maps through the same
// status handling as the unary transport.
func TestStreamStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer server.Close()

	client := NewStreamClient("bad-key").WithEndpoint(server.URL)
	_, err := client.Send(context.Background(), testRequest(t, "hi"))
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("error = %v, want ErrAuthFailed", err)
	}
	if IsTransient(err) {
		t.Error("auth failure must not be retried")
	}
}

// TestStreamCancellation verifies caller cancellation mid-stream is terminal.
func TestStreamCancellation(t *testing.T) {
	firstSent := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseEvent("Hel", ""))
		flusher.Flush()
		close(firstSent)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-firstSent
		cancel()
	}()

	client := NewStreamClient("test-key").WithEndpoint(server.URL)
	_, err := client.Send(ctx, testRequest(t, "hi"))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if IsTransient(err) {
		t.Error("cancellation must not be retried")
	}
}

// TestStreamRequestPath verifies the streaming endpoint shape.
func TestStreamRequestPath(t *testing.T) {
	var gotPath, gotQuery, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		io.WriteString(w, sseEvent("ok", "STOP"))
	}))
	defer server.Close()

	client := NewStreamClient("test-key").WithEndpoint(server.URL)
	if _, err := client.Send(context.Background(), testRequest(t, "hi")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotPath != "/v1beta/models/gemini-1.5-flash:streamGenerateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "alt=sse" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAccept != "text/event-stream" {
		t.Errorf("accept = %q", gotAccept)
	}
}

// TestStreamNotConfigured verifies a missing key fails fast.
func TestStreamNotConfigured(t *testing.T) {
	client := NewStreamClient("")
	if client.IsConfigured() {
		t.Error("client with empty key reports configured")
	}
	_, err := client.Send(context.Background(), testRequest(t, "hi"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

// TestStreamAttemptTimeout verifies a stalled stream trips the per-attempt
// deadline and surfaces as retry eligible.
func TestStreamAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseEvent("Hel", ""))
		flusher.Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	client := NewStreamClient("test-key").WithEndpoint(server.URL).WithTimeout(50 * time.Millisecond)
	_, err := client.Send(context.Background(), testRequest(t, "hi"))

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("error = %v, want StreamError", err)
	}
	if streamErr.Partial != "Hel" {
		t.Errorf("partial = %q, want %q", streamErr.Partial, "Hel")
	}
	if !IsTransient(err) {
		t.Error("stalled stream should be retry eligible")
	}
}
