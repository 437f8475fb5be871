// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch.

package cli

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdPrompt
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet bool
	Model string

	// Command-specific
	Text string   // prompt text for one-shot mode
	Raw  []string // arguments after the command word
}

// ParseArgs parses command-line arguments (without the program name).
func ParseArgs(args []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(args)

	// No arguments: interactive chat
	if len(remaining) == 0 {
		return CmdChat, parsed
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Raw = remaining

	switch cmd {
	case "chat":
		return CmdChat, parsed

	case "prompt", "ask":
		parsePromptArgs(&parsed, remaining)
		return CmdPrompt, parsed

	case "config":
		return CmdConfig, parsed

	case "version", "-v", "--version":
		return CmdVersion, parsed

	case "help", "-h", "--help":
		return CmdHelp, parsed

	default:
		// Bare words are a one-shot prompt: shellmind "list files"
		parsed.Text = strings.TrimSpace(strings.Join(append([]string{cmd}, remaining...), " "))
		parsed.Raw = args
		return CmdPrompt, parsed
	}
}

// parseGlobalFlags extracts global flags and returns the remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsed.Quiet = true
		case "-m", "--model":
			if i+1 < len(args) {
				i++
				parsed.Model = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				parsed.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsed
}

// parsePromptArgs parses the prompt command arguments. The text comes from
// -t/--text, with trailing positional words as fallback.
func parsePromptArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	if text := p.FlagOrDefault("t", p.Flag("text")); text != "" {
		args.Text = text
		return
	}
	args.Text = strings.TrimSpace(strings.Join(p.PositionalFrom(0), " "))
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run parses args and executes the selected command. The returned error is
// meant for the process exit path; user-facing detail has already been
// printed.
func Run(args []string) error {
	cmd, parsed := ParseArgs(args)

	switch cmd {
	case CmdChat:
		return HandleChat(parsed)

	case CmdPrompt:
		return HandlePrompt(parsed)

	case CmdConfig:
		return HandleConfig(NewArgParser(parsed.Raw))

	case CmdVersion:
		printVersion()
		return nil

	case CmdHelp:
		printUsage()
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command")
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("shellmind %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// printUsage prints top-level usage.
func printUsage() {
	fmt.Println(`shellmind - natural language to shell commands

Usage:
  shellmind                   Interactive chat
  shellmind prompt -t TEXT    One-shot prompt, print answer, exit
  shellmind config show       Print current configuration
  shellmind config set K V    Update configuration
  shellmind config path       Print the configuration file path
  shellmind version           Version information

Global flags:
  -q, --quiet                 Minimal output
  -m, --model NAME            Override the configured model

Environment:
  SHELLMIND_API_KEY           API key (GEMINI_API_KEY also honored)
  SHELLMIND_MODEL             Model override
  NO_COLOR                    Disable colored output`)
}
