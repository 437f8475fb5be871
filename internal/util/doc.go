// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across shellmind: UTF-8 safe
// text truncation for display, terminal width measurement, and crash-safe
// file writing.
package util
