// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and command dispatch.
//
// Commands:
//
//	shellmind                 interactive chat (default)
//	shellmind prompt -t TEXT  one-shot prompt, print answer, exit
//	shellmind config show     print current configuration (api key masked)
//	shellmind config set K V  update ~/.shellmind/config.toml
//	shellmind version         version information
//
// Parsing is hand-rolled through ArgParser, which handles long flags,
// short flags, --flag=value and positional arguments uniformly across
// commands.
package cli
