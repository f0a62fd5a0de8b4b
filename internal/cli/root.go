// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags every command shares.
type globalFlags struct {
	configPath string
	backend    string
	model      string
	logLevel   string
}

// NewRootCmd builds the lmchat command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "lmchat",
		Short: "Chat with a local language model from the terminal",
		Long: "lmchat talks to a locally running model server (Ollama or any " +
			"OpenAI-compatible server such as LM Studio), streams the reply and " +
			"renders it as Markdown.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, &chatFlags{exportDir: "."})
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to config file (default ~/.lmchat/config.toml)")
	pf.StringVar(&g.backend, "backend", "", "inference backend: ollama or openai")
	pf.StringVarP(&g.model, "model", "m", "", "model id to start with")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newChatCmd(g))
	cmd.AddCommand(newAskCmd(g))
	cmd.AddCommand(newModelsCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lmchat %s (commit: %s, built: %s, %s/%s)\n",
				Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}
