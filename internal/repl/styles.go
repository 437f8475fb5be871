// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - lipgloss styles for the interactive loop.

package repl

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// PALETTE
// =============================================================================

// Adaptive colors render correctly on both light and dark terminals.
var (
	colorCyan    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	colorPurple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	colorEmerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	colorAmber   = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	colorRose    = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	// Welcome banner style
	welcomeStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	// Info style
	infoStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// Command style
	commandStyle = lipgloss.NewStyle().
			Foreground(colorEmerald)

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(colorAmber)

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(colorRose)

	// Section header style
	headerStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)
)
