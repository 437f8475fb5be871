// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// input.go - Line editing and persistent input history.
//
// USABILITY: Supports arrow keys for history navigation and line editing.

package repl

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/shellmind/shellmind/internal/config"
)

// LineReader provides input history and line editing for the interactive
// loop.
type LineReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader creates a LineReader with input history support.
func NewLineReader() *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "history")

	r := &LineReader{
		line:        line,
		historyFile: historyFile,
	}
	r.loadHistory()
	return r
}

func (r *LineReader) loadHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Non-empty input is
// added to the navigable history.
func (r *LineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// saveHistory persists input history with secure permissions.
func (r *LineReader) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	// SECURITY: 0600 - prompts may contain sensitive material.
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	r.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (r *LineReader) Close() {
	r.saveHistory()
	r.line.Close()
}
