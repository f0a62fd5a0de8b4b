// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/spf13/cobra"

	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
	"github.com/jeranaias/lmchat/internal/ui/chat"
)

type chatFlags struct {
	plain     bool
	exportDir string
}

func newChatCmd(g *globalFlags) *cobra.Command {
	f := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: "Opens the chat TUI. With --plain, or when stdin is not a terminal, " +
			"a line-mode REPL is used instead; type /help there for its commands.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, f)
		},
	}

	cmd.Flags().BoolVar(&f.plain, "plain", false, "use the line-mode REPL instead of the TUI")
	cmd.Flags().StringVar(&f.exportDir, "export-dir", ".", "directory /export writes to")
	return cmd
}

func runChat(cmd *cobra.Command, g *globalFlags, f *chatFlags) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	if f.plain || !IsTTY() || !isTerminal(cmd.OutOrStdout()) {
		return runREPL(cmd, g, a, f)
	}

	path, err := configPath(g)
	if err != nil {
		path = ""
	}

	d := chat.NewDispatcher()
	ctrl := a.newController(g, session.WithDispatcher(d))
	return chat.Run(cmd.Context(), ctrl, d, chat.Options{
		Render:     render.FromConfig(a.cfg.UI),
		MaxFPS:     a.cfg.UI.MaxFPS,
		ConfigPath: path,
		Logger:     a.logger,
		Hint: func(modelID string, err error) string {
			return backendHint(a.provider, modelID, err)
		},
	})
}
