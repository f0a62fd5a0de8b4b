// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lmchat/internal/config"
	"github.com/jeranaias/lmchat/internal/inference"
	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/telemetry"
)

func newDoctorCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and the model server",
		Long:  "Runs diagnostic checks: config file, backend reachability, default model, telemetry database and log file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, g)
		},
	}
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, g *globalFlags) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "lmchat doctor")
	fmt.Fprintln(out, "=============")

	var results []checkResult

	cfg, res := checkConfig(g)
	results = append(results, res)

	if cfg != nil {
		registry := model.DefaultRegistry(cfg.Models...)
		results = append(results, checkRegistry(registry, cfg.DefaultModel))

		provider, err := newProvider(inferenceOptions(cfg))
		if err != nil {
			results = append(results, checkResult{"Backend", "FAIL", err.Error()})
		} else {
			results = append(results, checkBackend(cmd.Context(), provider, cfg.DefaultModel)...)
		}

		results = append(results, checkTelemetry(cfg))
		results = append(results, checkLogFile(cfg))
	} else {
		results = append(results, checkResult{"Backend", "FAIL", "skipped (no config)"})
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(g *globalFlags) (*config.Config, checkResult) {
	path, _ := configPath(g)
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, checkResult{"Config", "FAIL", err.Error()}
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return cfg, checkResult{"Config", "PASS", "defaults (no file at " + path + ")"}
	}
	return cfg, checkResult{"Config", "PASS", path}
}

func checkRegistry(r *model.Registry, defaultModel string) checkResult {
	if _, ok := r.Lookup(defaultModel); !ok {
		return checkResult{"Default model", "WARN",
			fmt.Sprintf("%q is not in the registry; sessions start on another model", defaultModel)}
	}
	return checkResult{"Default model", "PASS", fmt.Sprintf("%s (%d models known)", defaultModel, r.Len())}
}

func checkBackend(ctx context.Context, p inference.Provider, defaultModel string) []checkResult {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	if err := p.CheckRunning(ctx); err != nil {
		detail := withHint(fmt.Sprintf("%s at %s: %v", p.Name(), p.Endpoint(), err), backendHint(p, defaultModel, err))
		return []checkResult{{"Backend", "FAIL", detail}}
	}
	results := []checkResult{{"Backend", "PASS", fmt.Sprintf("%s at %s", p.Name(), p.Endpoint())}}

	models, err := p.ListModels(ctx)
	if err != nil {
		return append(results, checkResult{"Installed models", "WARN", withHint(err.Error(), backendHint(p, defaultModel, err))})
	}
	installed, ok := installedModels(models)[defaultModel]
	if !ok {
		detail := fmt.Sprintf("%q not found on the server (%d installed); %s",
			defaultModel, len(models), missingModelHint(p, defaultModel))
		return append(results, checkResult{"Installed models", "WARN", detail})
	}
	detail := fmt.Sprintf("%s installed (%d total)", defaultModel, len(models))
	if installed.Size != "" {
		detail = fmt.Sprintf("%s installed, %s (%d total)", defaultModel, installed.Size, len(models))
	}
	return append(results, checkResult{"Installed models", "PASS", detail})
}

func checkTelemetry(cfg *config.Config) checkResult {
	if !cfg.Telemetry.Enabled {
		return checkResult{"Telemetry", "PASS", "disabled"}
	}
	path, err := cfg.TelemetryPath()
	if err != nil {
		return checkResult{"Telemetry", "FAIL", err.Error()}
	}
	store, err := telemetry.Open(path, nil)
	if err != nil {
		return checkResult{"Telemetry", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	defer store.Close()

	ctx := context.Background()
	n, err := store.Count(ctx)
	if err != nil {
		return checkResult{"Telemetry", "WARN", fmt.Sprintf("%s: %v", path, err)}
	}
	v, err := store.Version(ctx)
	if err != nil {
		return checkResult{"Telemetry", "WARN", fmt.Sprintf("%s: %v", path, err)}
	}
	return checkResult{"Telemetry", "PASS", fmt.Sprintf("%s (%d turns, schema v%d)", path, n, v)}
}

func checkLogFile(cfg *config.Config) checkResult {
	path, err := cfg.LogPath()
	if err != nil {
		return checkResult{"Log file", "FAIL", err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return checkResult{"Log file", "FAIL", err.Error()}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return checkResult{"Log file", "FAIL", err.Error()}
	}
	f.Close()
	return checkResult{"Log file", "PASS", path}
}
