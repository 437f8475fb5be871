// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"

	"github.com/shellmind/shellmind/internal/history"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// Part is a single piece of content within a turn. Only text parts are used.
type Part struct {
	Text string `json:"text"`
}

// Content is a role-tagged group of parts, the provider's turn representation.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// GenerationConfig carries the sampling parameters sent with a request.
type GenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

// GenerateContentRequest is the request body for both wire variants.
// The model is addressed through the URL, not the body.
type GenerateContentRequest struct {
	Model             string            `json:"-"`
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated completion. The client only consumes the first.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// GenerateContentResponse is the unary response body. The streaming variant
// delivers the same shape in per-fragment chunks.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// apiErrorResponse is the provider's error envelope.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// =============================================================================
// ANSWER
// =============================================================================

// Answer is the unified output of either transport path.
type Answer struct {
	// Text is the model output, concatenated in generation order.
	Text string

	// FinishedCleanly is true only when the provider signalled normal
	// completion. Partial streaming output has it false; only clean
	// answers belong in conversation history.
	FinishedCleanly bool
}

// =============================================================================
// TRANSPORT CAPABILITY
// =============================================================================

// Transport sends one request and yields one normalized Answer. Both wire
// variants implement it; the variant is chosen once per session from
// configuration. Implementations handle one request at a time.
type Transport interface {
	Send(ctx context.Context, req *GenerateContentRequest) (*Answer, error)
}

// =============================================================================
// TURN CONVERSION
// =============================================================================

// contentsFromTurns converts history turns to wire contents, preserving order.
func contentsFromTurns(turns []history.Turn) []Content {
	contents := make([]Content, 0, len(turns)+1)
	for _, t := range turns {
		contents = append(contents, Content{
			Role:  string(t.Role),
			Parts: []Part{{Text: t.Text}},
		})
	}
	return contents
}
