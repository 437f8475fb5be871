// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"testing"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"set", "--force", "--timeout", "30"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be true")
				}
				if p.Flag("timeout") != "30" {
					t.Errorf("Flag(timeout) = %q, want 30", p.Flag("timeout"))
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"set", "--model=gemini-1.5-pro"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("model") != "gemini-1.5-pro" {
					t.Errorf("Flag(model) = %q", p.Flag("model"))
				}
			},
		},
		{
			name:    "explicit boolean",
			args:    []string{"--quiet=false"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("quiet") {
					t.Error("BoolFlag(quiet) should be false")
				}
				if !p.HasFlag("quiet") {
					t.Error("HasFlag(quiet) should be true")
				}
			},
		},
		{
			name:    "short flag with value",
			args:    []string{"-t", "list files"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("t") != "list files" {
					t.Errorf("Flag(t) = %q", p.Flag("t"))
				}
			},
		},
		{
			name:    "positional arguments",
			args:    []string{"set", "api_key", "abc"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "api_key" || p.Positional(2) != "abc" {
					t.Errorf("positionals = %q, %q", p.Positional(1), p.Positional(2))
				}
				if p.Positional(5) != "" {
					t.Error("out of range positional should be empty")
				}
				if p.PositionalCount() != 3 {
					t.Errorf("PositionalCount = %d", p.PositionalCount())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	p := NewArgParser([]string{"--set", "value"})
	if got := p.FlagOrDefault("set", "fallback"); got != "value" {
		t.Errorf("FlagOrDefault = %q", got)
	}
	if got := p.FlagOrDefault("missing", "fallback"); got != "fallback" {
		t.Errorf("FlagOrDefault(missing) = %q", got)
	}
}

func TestArgParser_PositionalFrom(t *testing.T) {
	p := NewArgParser([]string{"prompt", "list", "large", "files"})
	got := strings.Join(p.PositionalFrom(1), " ")
	if got != "list large files" {
		t.Errorf("PositionalFrom(1) = %q", got)
	}
	if len(p.PositionalFrom(10)) != 0 {
		t.Error("out of range PositionalFrom should be empty")
	}
}

// =============================================================================
// COMMAND DISPATCH TESTS (cli.go)
// =============================================================================

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantCmd Command
	}{
		{"no args defaults to chat", nil, CmdChat},
		{"explicit chat", []string{"chat"}, CmdChat},
		{"prompt", []string{"prompt", "-t", "list files"}, CmdPrompt},
		{"ask alias", []string{"ask", "-t", "list files"}, CmdPrompt},
		{"config", []string{"config", "show"}, CmdConfig},
		{"version", []string{"version"}, CmdVersion},
		{"version flag", []string{"--version"}, CmdVersion},
		{"help", []string{"help"}, CmdHelp},
		{"help flag", []string{"-h"}, CmdHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := ParseArgs(tt.args)
			if cmd != tt.wantCmd {
				t.Errorf("ParseArgs(%v) = %v, want %v", tt.args, cmd, tt.wantCmd)
			}
		})
	}
}

func TestParseArgs_BareWordsAreAPrompt(t *testing.T) {
	cmd, args := ParseArgs([]string{"list", "large", "files"})
	if cmd != CmdPrompt {
		t.Fatalf("cmd = %v, want CmdPrompt", cmd)
	}
	if args.Text != "list large files" {
		t.Errorf("Text = %q", args.Text)
	}
}

func TestParseArgs_PromptTextFlag(t *testing.T) {
	_, args := ParseArgs([]string{"prompt", "-t", "show disk usage"})
	if args.Text != "show disk usage" {
		t.Errorf("Text = %q", args.Text)
	}

	_, args = ParseArgs([]string{"prompt", "--text=show disk usage"})
	if args.Text != "show disk usage" {
		t.Errorf("Text via --text= = %q", args.Text)
	}

	// Positional fallback
	_, args = ParseArgs([]string{"prompt", "show", "disk", "usage"})
	if args.Text != "show disk usage" {
		t.Errorf("positional Text = %q", args.Text)
	}
}

func TestParseArgs_GlobalFlags(t *testing.T) {
	cmd, args := ParseArgs([]string{"-q", "--model=gemini-1.5-pro", "config", "show"})
	if cmd != CmdConfig {
		t.Fatalf("cmd = %v", cmd)
	}
	if !args.Quiet {
		t.Error("Quiet not set")
	}
	if args.Model != "gemini-1.5-pro" {
		t.Errorf("Model = %q", args.Model)
	}

	_, args = ParseArgs([]string{"--model", "gemini-1.5-pro"})
	if args.Model != "gemini-1.5-pro" {
		t.Errorf("Model (space form) = %q", args.Model)
	}
}

// =============================================================================
// SECRET MASKING TESTS (config_cmd.go)
// =============================================================================

func TestIsSecretKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"api_key", true},
		{"API_KEY", true},
		{"auth_token", true},
		{"password", true},
		{"model_name", false},
		{"temperature", false},
	}

	for _, tt := range tests {
		if got := isSecretKey(tt.key); got != tt.want {
			t.Errorf("isSecretKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMaskAPIKeyNeverLeaksKey(t *testing.T) {
	const key = "AIzaSyTESTSECRETVALUE12345"

	masked := maskAPIKey(key)
	if strings.Contains(masked, "AIza") || strings.Contains(masked, "SECRET") {
		t.Errorf("masked output leaks key material: %q", masked)
	}
	if !strings.HasPrefix(masked, "sha256:") {
		t.Errorf("masked output should be a fingerprint: %q", masked)
	}

	if got := maskAPIKey(""); got != "(not set)" {
		t.Errorf("empty key = %q", got)
	}
}

func TestMaskIfSecret(t *testing.T) {
	if got := maskIfSecret("model_name", "gemini-1.5-flash"); got != "gemini-1.5-flash" {
		t.Errorf("non-secret masked: %q", got)
	}
	if got := maskIfSecret("api_key", "supersecret1"); strings.Contains(got, "supersecret") {
		t.Errorf("secret leaked: %q", got)
	}
}
