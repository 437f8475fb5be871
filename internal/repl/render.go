// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Terminal output: markdown rendering, shell command
// highlighting, TTY detection and the in-flight spinner.
//
// USABILITY: Markdown rendering and syntax highlighting on a TTY; plain
// text when output is piped.

package repl

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	colorsEnabled     bool
	colorsEnabledOnce sync.Once
)

// ColorsEnabled returns true if colored output should be used. Respects the
// NO_COLOR convention (https://no-color.org/).
func ColorsEnabled() bool {
	colorsEnabledOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// ColorProfile returns the termenv profile for the current terminal.
// Returns Ascii when colors are disabled.
func ColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the shared glamour renderer for model output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown for terminal display. Returns the content
// unchanged if rendering fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// SHELL COMMAND HIGHLIGHTING
// =============================================================================

// HighlightShell applies bash syntax highlighting for terminal output.
// Returns the input unchanged when highlighting fails.
func HighlightShell(command string) string {
	return highlightCode(command, "bash")
}

// highlightCode applies chroma syntax highlighting to code.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// looksLikeBareCommand reports whether an answer is a single shell command
// rather than prose. Bare commands get chroma highlighting instead of the
// markdown renderer.
func looksLikeBareCommand(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, "\n") {
		return false
	}
	return !strings.ContainsAny(text, "`#*")
}

// DisplayAnswer writes a model answer to stdout, rendered when appropriate.
func DisplayAnswer(text string) {
	if !IsStdoutTTY() {
		fmt.Println(strings.TrimRight(text, "\n"))
		return
	}
	if looksLikeBareCommand(text) {
		fmt.Println(HighlightShell(strings.TrimSpace(text)))
		return
	}
	fmt.Print(renderMarkdown(text))
}

// =============================================================================
// SPINNER
// =============================================================================

// runWithSpinner runs fn while animating a spinner on stderr. The spinner
// line is erased when fn returns.
func runWithSpinner(msg string, fn func()) {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	spinChars := []rune{'|', '/', '-', '\\'}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	i := 0
	fmt.Fprintf(os.Stderr, "%s %c", infoStyle.Render(msg), spinChars[0])
	for {
		select {
		case <-done:
			fmt.Fprint(os.Stderr, "\r\033[K")
			return
		case <-ticker.C:
			i++
			fmt.Fprintf(os.Stderr, "\r%s %c", infoStyle.Render(msg), spinChars[i%len(spinChars)])
		}
	}
}
