// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini provides the client for the Google generative-language API.
//
// The package implements both wire variants behind a single Transport
// capability: a unary REST client (generateContent) and a streaming client
// (streamGenerateContent over SSE). Either way the caller gets back one
// normalized Answer.
//
// # Key Types
//
//   - Client: unary REST transport with per-attempt timeout
//   - StreamClient: streaming transport, fragments aggregated in order
//   - GenerateContentRequest: provider request built from history + input
//   - Answer: unified result of either transport path
//   - Accumulator: ordered fragment aggregation for the streaming path
//
// # Usage
//
// Build a request from the conversation and send it:
//
//	req, err := gemini.BuildRequest(hist.Snapshot(), "list open ports", params)
//	if err != nil {
//	    return err
//	}
//	answer, err := client.Send(ctx, req)
//
// Error classification is exposed through IsTransient and RetryAfterHint so
// the retry policy can live with the caller rather than inside a transport.
package gemini
