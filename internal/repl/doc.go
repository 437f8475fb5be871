// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repl implements the interactive chat loop.
//
// The loop reads lines with liner (persistent input history under
// ~/.shellmind/history), sends them through a session.Session, and renders
// answers with glamour on a TTY. A goroutine spinner runs while a request
// is in flight; Ctrl+C cancels the in-flight request without leaving the
// loop. Slash commands (/help, /clear, /model, /history, /save, /resume,
// /status, /quit) manage the conversation.
//
// Configuration changes picked up by the config watcher are applied between
// requests, never mid-flight.
package repl
