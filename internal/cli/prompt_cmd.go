// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// prompt_cmd.go - One-shot prompt command handler.
//
// Command: prompt
//
// Examples:
//   shellmind prompt -t "find large files"
//   shellmind prompt find large files
//   echo "find large files" | shellmind prompt
//
// Sends a single prompt through the session, prints the answer and exits.
// Ctrl+C cancels the in-flight request.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shellmind/shellmind/internal/gemini"
	"github.com/shellmind/shellmind/internal/repl"
	"github.com/shellmind/shellmind/internal/session"
	"github.com/shellmind/shellmind/internal/telemetry"
)

// HandlePrompt handles one-shot prompt mode.
func HandlePrompt(args Args) error {
	text := strings.TrimSpace(args.Text)

	// Piped input: echo "question" | shellmind prompt
	if text == "" {
		if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			data, err := io.ReadAll(bufio.NewReader(os.Stdin))
			if err == nil {
				text = strings.TrimSpace(string(data))
			}
		}
	}

	if text == "" {
		return fmt.Errorf("no prompt provided\nUsage: shellmind prompt -t \"your request\"")
	}

	cfg := loadConfigOrDefaults(args)
	sess := session.New(repl.TransportFor(cfg), repl.SessionConfigFor(cfg))

	usage := openUsageLog(cfg)
	defer usage.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	ans, err := sess.HandleInput(ctx, text)
	duration := time.Since(start)

	usage.Record(telemetry.Entry{
		Model:     cfg.ModelName,
		APIType:   cfg.APIType,
		Attempts:  sess.GetStatus().Retries + 1,
		Duration:  duration,
		PromptLen: len(text),
		AnswerLen: answerLen(ans),
		OK:        err == nil,
	})

	if err != nil {
		if ans != nil && ans.Text != "" && !ans.FinishedCleanly {
			repl.DisplayAnswer(ans.Text)
			fmt.Fprintln(os.Stderr, errStyle.Render("[Incomplete response]"))
		}
		return err
	}

	repl.DisplayAnswer(ans.Text)
	return nil
}

func answerLen(ans *gemini.Answer) int {
	if ans == nil {
		return 0
	}
	return len(ans.Text)
}
