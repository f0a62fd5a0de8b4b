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
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/lmchat/internal/config"
	"github.com/jeranaias/lmchat/internal/export"
	"github.com/jeranaias/lmchat/internal/inference"
	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
	"github.com/jeranaias/lmchat/internal/ui/chat"
	"github.com/jeranaias/lmchat/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)
)

const replHelp = `Commands:
  /model [id]        show or switch the model
  /models            list available models
  /clear             clear the conversation
  /tokens            show the token estimate
  /export [md|json]  write the conversation to a file
  /help              show this help
  /quit              exit (also Ctrl+D)
Ctrl+C cancels a reply in progress.`

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader wraps liner with a history file in the config directory.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "chat_history")}

	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// read prompts for a line and adds it to history.
func (r *lineReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history (0600) and restores the terminal.
func (r *lineReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// repl runs chat turns and slash commands against one session.
type repl struct {
	ctrl      *session.Controller
	out       io.Writer
	printer   *streamPrinter
	last      *lastTurn
	exportDir string
	now       func() time.Time

	// provider, when set, is used to suggest fixes for failed requests.
	provider inference.Provider

	// close unsubscribes the printer.
	close func()
}

func runREPL(cmd *cobra.Command, g *globalFlags, a *app, f *chatFlags) error {
	out := cmd.OutOrStdout()
	last := &lastTurn{next: a.recorder()}
	ctrl := a.newController(g, session.WithRecorder(last))

	r := newREPL(ctrl, out, last, f.exportDir)
	r.provider = a.provider
	defer r.close()

	// Ctrl+C while a reply streams cancels it; at the prompt liner
	// handles it instead.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	defer func() {
		signal.Stop(sigs)
		close(done)
	}()
	go cancelOnInterrupt(ctrl, out, sigs, done)

	st := ctrl.State()
	fmt.Fprintf(out, "%s %s\n", promptStyle.Render("lmchat"),
		infoStyle.Render(fmt.Sprintf("chatting with %s via %s. /help for commands.", st.Model.ID, a.provider.Name())))

	lines := newLineReader()
	defer lines.Close()

	ctx := cmd.Context()
	for {
		input, err := lines.read("you> ")
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D both exit.
			fmt.Fprintln(out)
			return nil
		}
		if r.handle(ctx, input) {
			return nil
		}
	}
}

// cancelOnInterrupt cancels the streaming reply for every signal on sigs
// until done is closed.
func cancelOnInterrupt(ctrl *session.Controller, out io.Writer, sigs <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sigs:
			if ctrl.Cancel() {
				fmt.Fprintln(out, "\n"+warningStyle.Render("[cancelled]"))
			}
		}
	}
}

func newREPL(ctrl *session.Controller, out io.Writer, last *lastTurn, exportDir string) *repl {
	r := &repl{
		ctrl:      ctrl,
		out:       out,
		printer:   newStreamPrinter(out),
		last:      last,
		exportDir: exportDir,
		now:       time.Now,
	}
	r.close = ctrl.Subscribe(r.printer.observe)
	return r
}

// handle processes one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "/") {
		return r.command(input)
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return true
	}
	if err := r.turn(ctx, input); err != nil {
		fmt.Fprintln(r.out, errorStyle.Render("[error] "+err.Error()))
	}
	return false
}

// turn submits text and waits for the reply to finish streaming.
func (r *repl) turn(ctx context.Context, text string) error {
	if !r.ctrl.Submit(norm.NFC.String(text)) {
		return errors.New("a reply is already streaming")
	}
	if err := r.ctrl.WaitIdle(ctx); err != nil {
		r.ctrl.Cancel()
		return err
	}
	if r.printer.wrote() {
		fmt.Fprintln(r.out)
	}

	s, ok := r.last.get()
	if ok && s.Outcome == session.OutcomeFailed {
		msg := "request failed: " + s.Error
		if r.provider != nil {
			msg = withHint(msg, backendHint(r.provider, s.ModelID, s.Err))
		}
		return errors.New(msg)
	}
	return nil
}

// command runs a slash command and reports whether to quit.
func (r *repl) command(input string) bool {
	fields := strings.Fields(input)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h", "/?":
		fmt.Fprintln(r.out, replHelp)

	case "/clear", "/c":
		r.ctrl.Reset()
		fmt.Fprintln(r.out, infoStyle.Render("conversation cleared"))

	case "/model", "/m":
		if len(args) == 0 {
			d := r.ctrl.Model()
			fmt.Fprintf(r.out, "%s (%s, %s)\n", d.ID, d.DisplayName(), d.ContextString())
			return false
		}
		if !r.ctrl.SelectModel(args[0]) {
			fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("unknown model %q, known: %s",
				args[0], strings.Join(r.ctrl.Registry().IDs(), ", "))))
			return false
		}
		fmt.Fprintln(r.out, infoStyle.Render("model: "+args[0]))

	case "/models":
		active := r.ctrl.Model().ID
		for _, d := range r.ctrl.Registry().List() {
			mark := " "
			if d.ID == active {
				mark = "*"
			}
			fmt.Fprintf(r.out, "%s %s %s  %s\n", mark, render.PadRight(d.ID, 16),
				render.PadRight(d.ContextString(), 12), d.CapabilitiesString())
		}

	case "/tokens", "/t":
		fmt.Fprintln(r.out, chat.TokenSummary(r.ctrl.State()))

	case "/export":
		format := ""
		if len(args) > 0 {
			format = args[0]
		}
		path, err := r.export(format)
		if err != nil {
			fmt.Fprintln(r.out, errorStyle.Render("[error] "+err.Error()))
			return false
		}
		fmt.Fprintln(r.out, infoStyle.Render("exported to "+path))

	default:
		fmt.Fprintln(r.out, warningStyle.Render(fmt.Sprintf("unknown command %s, /help lists them", name)))
	}
	return false
}

// export writes the current conversation in format ("md" or "json").
func (r *repl) export(format string) (string, error) {
	opts := export.DefaultOptions()
	opts.OutputDir = r.exportDir

	exporter, err := export.ExporterFor(format, opts)
	if err != nil {
		return "", err
	}
	return export.ToFile(export.FromState(r.ctrl.State(), r.now()), exporter, opts)
}
