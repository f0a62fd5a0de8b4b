// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
)

type askFlags struct {
	raw     bool
	timeout time.Duration
}

func newAskCmd(g *globalFlags) *cobra.Command {
	f := &askFlags{}

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt and print the reply",
		Long: "Sends a single prompt to the model and prints the reply. With no " +
			"prompt argument, or \"-\", the prompt is read from stdin. Replies are " +
			"rendered as Markdown unless --raw is given or Markdown is off in the config.",
		Example: "  lmchat ask \"explain goroutines in one paragraph\"\n" +
			"  git diff | lmchat ask --raw -m qwen2.5-coder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, g, f, args)
		},
	}

	cmd.Flags().BoolVar(&f.raw, "raw", false, "stream the reply as plain text")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up after this long (0 = no limit)")
	return cmd
}

// readPrompt joins args, or reads stdin when there are none or the only
// argument is "-".
func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.Join(args, " ")
	if len(args) == 0 || prompt == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(data)
	}
	prompt = norm.NFC.String(strings.TrimSpace(prompt))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

func runAsk(cmd *cobra.Command, g *globalFlags, f *askFlags, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	last := &lastTurn{next: a.recorder()}
	ctrl := a.newController(g, session.WithRecorder(last))

	live := f.raw || !a.cfg.UI.Markdown
	var printer *streamPrinter
	if live {
		printer = newStreamPrinter(out)
		defer ctrl.Subscribe(printer.observe)()
	}

	if !ctrl.Submit(prompt) {
		return errors.New("prompt was not accepted")
	}
	if err := ctrl.WaitIdle(ctx); err != nil {
		ctrl.Cancel()
		if printer != nil && printer.wrote() {
			fmt.Fprintln(out)
		}
		return fmt.Errorf("no complete reply: %w", err)
	}

	if s, ok := last.get(); ok && s.Outcome == session.OutcomeFailed {
		if printer != nil && printer.wrote() {
			fmt.Fprintln(out)
		}
		msg := fmt.Sprintf("request to %s failed: %s", a.provider.Endpoint(), s.Error)
		return errors.New(withHint(msg, backendHint(a.provider, s.ModelID, s.Err)))
	}

	if live {
		fmt.Fprintln(out)
		return nil
	}

	reply, _ := ctrl.State().LastReply()
	r, err := render.New(renderOptionsFor(a.cfg.UI, out))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, r.Render(reply))
	return nil
}
