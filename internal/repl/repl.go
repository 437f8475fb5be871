// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive chat loop.
//
// Reads lines with history support, sends them through the session, and
// renders answers. One request is in flight at a time; Ctrl+C cancels it
// without leaving the loop.
//
// Interactive commands:
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /model [name]       Show or switch model
//   /status, /s         Show session statistics
//   /history            Show conversation history
//   /save               Save the conversation
//   /resume [id]        Resume a saved conversation (latest by default)
//   /quit, /q           Exit
//   Ctrl+C              Cancel current request
//   Ctrl+D              Exit

package repl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/shellmind/shellmind/internal/config"
	"github.com/shellmind/shellmind/internal/gemini"
	"github.com/shellmind/shellmind/internal/session"
	"github.com/shellmind/shellmind/internal/storage"
	"github.com/shellmind/shellmind/internal/telemetry"
	"github.com/shellmind/shellmind/internal/util"
)

// =============================================================================
// WIRING
// =============================================================================

// TransportFor builds the transport selected by the configuration. The
// choice is made once per session; reconfiguration swaps the transport
// between requests.
func TransportFor(cfg *config.Config) gemini.Transport {
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	if cfg.APIType == config.APITypeStreaming {
		c := gemini.NewStreamClient(cfg.APIKey).WithTimeout(timeout)
		if cfg.StreamingEndpoint != "" {
			c = c.WithEndpoint(cfg.StreamingEndpoint)
		}
		return c
	}
	return gemini.NewClient(cfg.APIKey).WithTimeout(timeout)
}

// SessionConfigFor maps the file configuration onto session tuning.
func SessionConfigFor(cfg *config.Config) session.Config {
	return session.Config{
		Model:             cfg.ModelName,
		Temperature:       cfg.Temperature,
		SystemPrompt:      cfg.SystemPrompt,
		ContextWindow:     cfg.ContextWindowSize,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}
}

// =============================================================================
// REPL
// =============================================================================

// REPL is the interactive chat loop.
type REPL struct {
	session *session.Session
	store   *storage.ConversationStore
	usage   *telemetry.UsageLog
	input   *LineReader
	quiet   bool

	cfgMu   sync.Mutex
	cfg     *config.Config
	pending *config.Config

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New creates a REPL driving the given session. store and usage may be nil;
// the corresponding features are disabled.
func New(sess *session.Session, cfg *config.Config, store *storage.ConversationStore, usage *telemetry.UsageLog, quiet bool) *REPL {
	return &REPL{
		session: sess,
		store:   store,
		usage:   usage,
		cfg:     cfg,
		quiet:   quiet,
	}
}

// ApplyConfig queues a reloaded configuration. It is applied between
// requests, never mid-flight. Safe to call from the watcher goroutine.
func (r *REPL) ApplyConfig(cfg *config.Config) {
	r.cfgMu.Lock()
	r.pending = cfg
	r.cfgMu.Unlock()
}

// applyPending swaps in a queued configuration, if any.
func (r *REPL) applyPending() {
	r.cfgMu.Lock()
	cfg := r.pending
	r.pending = nil
	if cfg != nil {
		r.cfg = cfg
	}
	r.cfgMu.Unlock()

	if cfg == nil {
		return
	}

	r.session.SetConfig(SessionConfigFor(cfg))
	r.session.SetTransport(TransportFor(cfg))
	if !r.quiet {
		fmt.Fprintf(os.Stderr, "%s configuration reloaded\n", infoStyle.Render("[Config]"))
	}
}

// config returns the active configuration.
func (r *REPL) config() *config.Config {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	return r.cfg
}

// cancelInFlight cancels the current request, if one is running.
func (r *REPL) cancelInFlight() bool {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

func (r *REPL) setCancel(cancel context.CancelFunc) {
	r.cancelMu.Lock()
	r.cancel = cancel
	r.cancelMu.Unlock()
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Run drives the interactive loop until the user exits.
func (r *REPL) Run() error {
	if r.input == nil {
		r.input = NewLineReader()
	}
	defer r.input.Close()

	if !r.quiet {
		r.printWelcome()
	}

	// First Ctrl+C cancels the in-flight request; at an idle prompt it is
	// delivered to liner as a prompt abort instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if r.cancelInFlight() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		r.applyPending()

		input, err := r.input.ReadInput(promptStyle.Render("shellmind> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C at an idle prompt
				fmt.Println(infoStyle.Render("(press Ctrl+D or type /quit to exit)"))
				continue
			}
			// EOF (Ctrl+D) or terminal error
			fmt.Println()
			r.printGoodbye()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := r.handleSlashCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !cont {
				r.printGoodbye()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			r.printGoodbye()
			return nil
		}

		r.processInput(input)
	}
}

// processInput sends one user turn through the session and renders the
// result.
func (r *REPL) processInput(input string) {
	ctx, cancel := context.WithCancel(context.Background())
	r.setCancel(cancel)
	defer func() {
		r.setCancel(nil)
		cancel()
	}()

	retriesBefore := r.session.GetStatus().Retries
	start := time.Now()

	var ans *gemini.Answer
	var err error
	if IsStdoutTTY() && !r.quiet {
		runWithSpinner("Thinking...", func() {
			ans, err = r.session.HandleInput(ctx, input)
		})
	} else {
		ans, err = r.session.HandleInput(ctx, input)
	}

	duration := time.Since(start)
	cfg := r.config()

	r.usage.Record(telemetry.Entry{
		Model:     cfg.ModelName,
		APIType:   cfg.APIType,
		Attempts:  r.session.GetStatus().Retries - retriesBefore + 1,
		Duration:  duration,
		PromptLen: len(input),
		AnswerLen: answerLen(ans),
		OK:        err == nil,
	})

	if err != nil {
		if errors.Is(err, gemini.ErrCancelled) || errors.Is(err, context.Canceled) {
			return
		}
		// A partial answer survives the error; show it, clearly marked.
		if ans != nil && ans.Text != "" && !ans.FinishedCleanly {
			fmt.Println()
			DisplayAnswer(ans.Text)
			fmt.Fprintln(os.Stderr, warningStyle.Render("[Incomplete response - not added to history]"))
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}

	fmt.Println()
	DisplayAnswer(ans.Text)
	fmt.Println()

	if !r.quiet {
		fmt.Fprintf(os.Stderr, "%s %s | %s\n",
			infoStyle.Render("[Stats]"),
			cfg.ModelName,
			duration.Round(time.Millisecond))
	}
}

func answerLen(ans *gemini.Answer) int {
	if ans == nil {
		return 0
	}
	return len(ans.Text)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (r *REPL) handleSlashCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
		return true, nil

	case "/clear", "/c":
		r.session.Reset()
		fmt.Println(commandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return r.handleModelCommand(args)

	case "/status", "/s":
		r.printStatus()
		return true, nil

	case "/history":
		r.printHistory()
		return true, nil

	case "/save":
		return true, r.handleSaveCommand()

	case "/resume":
		return true, r.handleResumeCommand(args)

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand shows or switches the model.
func (r *REPL) handleModelCommand(args []string) (bool, error) {
	cfg := r.config()
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"),
			commandStyle.Render(cfg.ModelName))
		return true, nil
	}

	cfg.ModelName = args[0]
	r.session.SetConfig(SessionConfigFor(cfg))
	fmt.Printf("%s Switched to model: %s\n",
		commandStyle.Render("[OK]"),
		args[0])
	return true, nil
}

// handleSaveCommand persists the current conversation.
func (r *REPL) handleSaveCommand() error {
	if r.store == nil {
		return fmt.Errorf("conversation storage is not available")
	}

	turns := r.session.History().Snapshot()
	if len(turns) == 0 {
		fmt.Println(infoStyle.Render("[Nothing to save]"))
		return nil
	}

	conv := storage.FromTurns(turns, r.config().ModelName)
	id, err := r.store.Save(conv)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	fmt.Printf("%s Saved conversation %s (%d turns)\n",
		commandStyle.Render("[OK]"),
		id,
		len(turns))
	return nil
}

// handleResumeCommand restores a saved conversation, the latest by default.
func (r *REPL) handleResumeCommand(args []string) error {
	if r.store == nil {
		return fmt.Errorf("conversation storage is not available")
	}

	var conv *storage.StoredConversation
	var err error
	if len(args) > 0 {
		conv, err = r.store.Load(args[0])
	} else {
		conv, err = r.store.LoadLatest()
	}
	if err != nil {
		return err
	}

	r.session.History().Restore(conv.ToTurns())
	fmt.Printf("%s Resumed conversation %s (%d turns)\n",
		commandStyle.Render("[OK]"),
		conv.ID,
		r.session.History().Len())
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// printWelcome prints the welcome banner.
func (r *REPL) printWelcome() {
	cfg := r.config()

	fmt.Println()
	fmt.Println(welcomeStyle.Render("shellmind interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(cfg.ModelName))
	fmt.Printf("%s %s\n",
		infoStyle.Render("API:"),
		commandStyle.Render(cfg.APIType))
	if cfg.APIKey == "" {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Key:"),
			warningStyle.Render("Not configured (set GEMINI_API_KEY or run: shellmind config set api_key)"))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printHelp prints available commands.
func (r *REPL) printHelp() {
	fmt.Println()
	fmt.Println(headerStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/status, /s", "Show session statistics"},
		{"/history", "Show conversation history"},
		{"/save", "Save the conversation"},
		{"/resume [id]", "Resume a saved conversation"},
		{"/quit, /q", "Exit"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current request, Ctrl+D exits"))
	fmt.Println()
}

// printStatus prints session statistics.
func (r *REPL) printStatus() {
	status := r.session.GetStatus()

	fmt.Println()
	fmt.Println(headerStyle.Render("Session Status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	fmt.Printf("  %s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(status.Model))
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		status.Duration.Round(time.Second).String())
	fmt.Printf("  %s %d turns (window %d)\n",
		infoStyle.Render("History:"),
		status.HistoryLen,
		status.ContextWindow)
	fmt.Printf("  %s %d completed, %d retries\n",
		infoStyle.Render("Requests:"),
		status.Turns,
		status.Retries)
	fmt.Println()
}

// printHistory prints the conversation so far.
func (r *REPL) printHistory() {
	turns := r.session.History().Snapshot()
	if len(turns) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, turn := range turns {
		role := string(turn.Role)
		switch turn.Role {
		case "user":
			role = promptStyle.Render("You")
		case "model":
			role = welcomeStyle.Render("AI")
		}

		// UNICODE: rune-based truncation keeps multi-byte text intact
		content := util.TruncateRunes(util.OneLine(turn.Text), 100)

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}

	fmt.Println()
}

// printGoodbye prints the exit summary.
func (r *REPL) printGoodbye() {
	status := r.session.GetStatus()
	if status.Turns == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))
	fmt.Printf("  %s %d\n",
		infoStyle.Render("Requests:"),
		status.Turns)
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		status.Duration.Round(time.Second).String())
	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
