// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for shellmind.
//
// Conversations are stored as JSON files under ~/.shellmind/conversations/,
// one file per conversation, written atomically. The store keeps a bounded
// number of conversations, pruning the oldest when the limit is exceeded.
package storage
