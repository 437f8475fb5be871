// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"fmt"
	"strings"
)

// =============================================================================
// UNARY AGGREGATION
// =============================================================================

// ExtractAnswer normalizes a unary payload: the first candidate's text parts
// concatenated in order. Returns ErrMalformedResponse when the expected
// nested shape is absent.
func ExtractAnswer(resp *GenerateContentResponse) (*Answer, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	cand := resp.Candidates[0]
	if len(cand.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: candidate has no content parts", ErrMalformedResponse)
	}

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}

	return &Answer{
		Text:            text.String(),
		FinishedCleanly: true,
	}, nil
}

// =============================================================================
// STREAMING AGGREGATION
// =============================================================================

// Accumulator merges streamed fragments into a single Answer. Fragments are
// concatenated strictly in arrival order; only one in-flight request feeds
// an accumulator at a time.
type Accumulator struct {
	text          strings.Builder
	fragmentCount int
	finished      bool
	finishReason  string
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends one fragment. A fragment with the terminal marker set records
// clean completion; fragments after it are ignored.
func (a *Accumulator) Add(f Fragment) {
	if a.finished {
		return
	}
	a.text.WriteString(f.Text)
	a.fragmentCount++
	if f.Final {
		a.finished = true
		a.finishReason = f.FinishReason
	}
}

// Text returns the content accumulated so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Finished reports whether the terminal marker was seen.
func (a *Accumulator) Finished() bool {
	return a.finished
}

// FinishReason returns the provider's finish reason, if completed.
func (a *Accumulator) FinishReason() string {
	return a.finishReason
}

// FragmentCount returns the number of fragments merged.
func (a *Accumulator) FragmentCount() int {
	return a.fragmentCount
}

// Answer returns the aggregated result. FinishedCleanly is true only when
// the terminal marker arrived; a disconnect mid-stream leaves it false and
// the accumulated text is still usable as a degraded result.
func (a *Accumulator) Answer() *Answer {
	return &Answer{
		Text:            a.text.String(),
		FinishedCleanly: a.finished,
	}
}
