// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates assistant conversations: it owns the
// conversation history, builds provider requests from user input, drives a
// transport with bounded retries, and commits completed exchanges back to
// history.
//
// # Key Types
//
//   - Session: one interactive conversation with retry policy and rate limiting
//   - Config: tuning knobs (model, window size, retries, backoff)
//   - Status: point-in-time snapshot for status displays
//
// # Usage
//
//	sess := session.New(gemini.NewClient(key), session.DefaultConfig())
//	answer, err := sess.HandleInput(ctx, "how do I find large files?")
//
// A failed turn never mutates history: retries rebuild the identical request
// from the same snapshot, and the exchange is committed only after a
// cleanly-finished answer.
package session
