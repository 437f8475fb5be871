// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"fmt"
	"strings"

	"github.com/shellmind/shellmind/internal/history"
)

// =============================================================================
// GENERATION PARAMETERS
// =============================================================================

// Params holds the per-session generation parameters. They are immutable for
// the duration of a request; the session may swap them between requests.
type Params struct {
	Model        string
	Temperature  float64
	SystemPrompt string
}

// =============================================================================
// REQUEST BUILDER
// =============================================================================

// BuildRequest assembles a provider request from the conversation snapshot,
// the new user input and the generation parameters. The turn order is
// [history...] + [new user turn]; the system prompt is injected at build
// time as the request's system instruction, so it is logically first and is
// never subject to history eviction.
//
// Returns ErrEmptyInput if userText is empty after trimming whitespace.
// Requests are built fresh per call and never retained.
func BuildRequest(turns []history.Turn, userText string, p Params) (*GenerateContentRequest, error) {
	trimmed := strings.TrimSpace(userText)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: prompt is blank", ErrEmptyInput)
	}

	contents := contentsFromTurns(turns)
	contents = append(contents, Content{
		Role:  string(history.RoleUser),
		Parts: []Part{{Text: trimmed}},
	})

	req := &GenerateContentRequest{
		Model:    p.Model,
		Contents: contents,
		GenerationConfig: &GenerationConfig{
			Temperature: p.Temperature,
		},
	}

	if p.SystemPrompt != "" {
		req.SystemInstruction = &Content{
			Parts: []Part{{Text: p.SystemPrompt}},
		}
	}

	return req, nil
}
