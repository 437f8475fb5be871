// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history holds the bounded conversation log for a session.
package history

// =============================================================================
// TURN TYPE
// =============================================================================

// Role identifies who produced a turn. The values match the wire roles
// expected by the generative-language API.
type Role string

const (
	// RoleUser marks a turn written by the user.
	RoleUser Role = "user"

	// RoleModel marks a turn produced by the model.
	RoleModel Role = "model"
)

// Turn is a single exchange entry. Turns are immutable once appended.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewUserTurn creates a user turn.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// NewModelTurn creates a model turn.
func NewModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Text: text}
}

// =============================================================================
// HISTORY
// =============================================================================

// History is an ordered log of turns capped at a fixed size.
// When appending would exceed the cap, the oldest turns are evicted first,
// preserving the most recent dialogue. Insertion order is chronological and
// is preserved verbatim by Snapshot.
//
// History is not safe for concurrent use; each session owns exactly one.
type History struct {
	turns []Turn
	max   int
}

// New creates a history capped at max turns. A max of zero keeps nothing:
// every append is immediately evicted.
func New(max int) *History {
	if max < 0 {
		max = 0
	}
	return &History{
		turns: make([]Turn, 0, max),
		max:   max,
	}
}

// Append adds a turn at the tail, evicting from the head if the cap is
// exceeded. It always succeeds.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
	if len(h.turns) > h.max {
		// Evict oldest first. Copy down rather than re-slice so the
		// backing array does not pin evicted turns.
		excess := len(h.turns) - h.max
		n := copy(h.turns, h.turns[excess:])
		h.turns = h.turns[:n]
	}
}

// AppendExchange appends a user turn followed by the model's reply.
func (h *History) AppendExchange(userText, modelText string) {
	h.Append(NewUserTurn(userText))
	h.Append(NewModelTurn(modelText))
}

// Snapshot returns a copy of the current turns in chronological order.
// Mutating the returned slice does not affect the history.
func (h *History) Snapshot() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Clear empties the log.
func (h *History) Clear() {
	h.turns = h.turns[:0]
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Cap returns the configured maximum number of turns.
func (h *History) Cap() int {
	return h.max
}

// IsEmpty returns true if no turns are retained.
func (h *History) IsEmpty() bool {
	return len(h.turns) == 0
}

// Last returns the most recent turn, or a zero Turn if empty.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// SetCap changes the maximum, evicting the oldest turns when the new cap is
// smaller than the current length.
func (h *History) SetCap(max int) {
	if max < 0 {
		max = 0
	}
	h.max = max
	if len(h.turns) > max {
		excess := len(h.turns) - max
		n := copy(h.turns, h.turns[excess:])
		h.turns = h.turns[:n]
	}
}

// Restore replaces the log with the given turns, applying the cap.
// Used when resuming a persisted conversation.
func (h *History) Restore(turns []Turn) {
	h.turns = h.turns[:0]
	for _, t := range turns {
		h.Append(t)
	}
}
