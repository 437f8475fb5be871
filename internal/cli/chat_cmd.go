// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat_cmd.go - Interactive chat command handler.
//
// Command: chat (default when no command is given)
//
// Wires together the configuration, transport, session, conversation store,
// usage log and config watcher, then hands control to the interactive loop.

package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/shellmind/shellmind/internal/config"
	"github.com/shellmind/shellmind/internal/repl"
	"github.com/shellmind/shellmind/internal/session"
	"github.com/shellmind/shellmind/internal/storage"
	"github.com/shellmind/shellmind/internal/telemetry"
)

// HandleChat runs the interactive chat loop.
func HandleChat(args Args) error {
	cfg := loadConfigOrDefaults(args)

	sess := session.New(repl.TransportFor(cfg), repl.SessionConfigFor(cfg))

	// Conversation persistence for /save and /resume. Missing storage
	// disables the commands, it does not block the chat.
	store, err := storage.NewConversationStore()
	if err != nil {
		log.Printf("conversation storage unavailable: %v", err)
		store = nil
	}

	usage := openUsageLog(cfg)
	defer usage.Close()

	r := repl.New(sess, cfg, store, usage, args.Quiet)

	// Hot reload: configuration edits are applied between requests.
	if path, err := config.ConfigPath(); err == nil {
		watcher, err := config.NewWatcher(path, r.ApplyConfig)
		if err == nil {
			if err := watcher.Watch(); err != nil {
				log.Printf("config watcher unavailable: %v", err)
				watcher.Close()
			} else {
				defer watcher.Close()
			}
		}
	}

	return r.Run()
}

// loadConfigOrDefaults loads the configuration, falling back to defaults
// with env overrides on error, and applies CLI overrides.
func loadConfigOrDefaults(args Args) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s (using defaults)\n", err)
		cfg = config.Default()
		cfg.ApplyEnvOverrides()
	}
	if args.Model != "" {
		cfg.ModelName = args.Model
	}
	return cfg
}

// openUsageLog opens the usage database when enabled. Returns nil (a valid
// no-op log) otherwise.
func openUsageLog(cfg *config.Config) *telemetry.UsageLog {
	if !cfg.UsageLogEnabled {
		return nil
	}
	path, err := telemetry.DefaultPath()
	if err != nil {
		return nil
	}
	usage, err := telemetry.Open(path)
	if err != nil {
		log.Printf("usage log unavailable: %v", err)
		return nil
	}
	return usage
}
