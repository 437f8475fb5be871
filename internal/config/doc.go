// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for shellmind.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Precedence (lowest to highest):
//   - Built-in defaults
//   - ~/.shellmind/config.toml
//   - SHELLMIND_* environment variables (plus GEMINI_API_KEY)
package config
