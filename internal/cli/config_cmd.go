// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration command handlers.
//
// Command: config
// Subcommands:
//   show (default)   Print current configuration with the api key masked
//   set KEY VALUE    Update a value; api_key value may be entered without
//                    echo when omitted on a TTY
//   path             Print the configuration file path
//   reset            Restore defaults

package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/shellmind/shellmind/internal/config"
	"github.com/shellmind/shellmind/internal/gemini"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(p *ArgParser) error {
	switch p.Subcommand() {
	case "", "show":
		return handleConfigShow()

	case "set":
		return handleConfigSet(p.Positional(1), p.Positional(2))

	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	case "reset":
		return handleConfigReset()

	default:
		return fmt.Errorf("unknown config subcommand: %s", p.Subcommand())
	}
}

// handleConfigShow prints the active configuration, one key per line.
func handleConfigShow() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s (using defaults)\n", err)
		cfg = config.Default()
		cfg.ApplyEnvOverrides()
	}

	path, _ := config.ConfigPath()

	fmt.Println()
	fmt.Println(titleStyle.Render("shellmind Configuration"))
	fmt.Println(strings.Repeat("─", 41))
	fmt.Println()

	for _, key := range config.GetAllKeys() {
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}

		display := fmt.Sprintf("%v", val)
		style := valueStyle
		if isSecretKey(key) {
			display = maskAPIKey(fmt.Sprintf("%v", val))
			style = maskedStyle
		}

		fmt.Printf("  %s %s\n",
			keyStyle.Render(fmt.Sprintf("%-22s", key+":")),
			style.Render(display))
	}

	fmt.Println()
	fmt.Printf("Config file: %s\n", path)
	fmt.Println()
	return nil
}

// handleConfigSet updates one configuration value and saves the file.
func handleConfigSet(key, value string) error {
	if key == "" {
		return fmt.Errorf("no config key provided\nUsage: shellmind config set <key> <value>")
	}
	key = strings.ToLower(key)

	// Secret values may be entered without echo instead of appearing in the
	// shell history.
	if value == "" && isSecretKey(key) {
		entered, err := readSecret(fmt.Sprintf("Enter value for %s: ", key))
		if err != nil {
			return err
		}
		value = entered
	}
	if value == "" {
		return fmt.Errorf("no config value provided\nUsage: shellmind config set %s <value>", key)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s (using defaults)\n", err)
		cfg = config.Default()
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s %s = %s\n",
		successStyle.Render("[OK]"),
		key,
		maskIfSecret(key, value))
	return nil
}

// handleConfigReset writes the default configuration.
func handleConfigReset() error {
	if err := config.Save(config.Default()); err != nil {
		return fmt.Errorf("failed to reset config: %w", err)
	}
	fmt.Printf("%s configuration reset to defaults\n", successStyle.Render("[OK]"))
	return nil
}

// =============================================================================
// SECRET HANDLING
// =============================================================================

// readSecret reads a value from the terminal without echo.
func readSecret(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("secret entry requires a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// isSecretKey reports whether a config key holds sensitive material.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range []string{"key", "secret", "token", "password"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// maskAPIKey returns a display form that never exposes key material.
// SECURITY: Fingerprint only; no key fragments.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return fmt.Sprintf("sha256:%s...", gemini.KeyFingerprint(key))
}

// maskIfSecret masks the value if the key is a secret field.
func maskIfSecret(key, value string) string {
	if isSecretKey(key) {
		return maskAPIKey(value)
	}
	return value
}
