// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lmchat/internal/telemetry"
)

type statsFlags struct {
	days  int
	prune int
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	f := &statsFlags{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-model turn statistics",
		Long: "Summarises the local turn log: turns, outcomes, average duration and " +
			"reply throughput per model, plus daily activity. No message content is stored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, g, f)
		},
	}

	cmd.Flags().IntVar(&f.days, "days", 30, "how many days back to include")
	cmd.Flags().IntVar(&f.prune, "prune", 0, "delete turns older than this many days first (0 = keep all)")
	return cmd
}

func runStats(cmd *cobra.Command, g *globalFlags, f *statsFlags) error {
	if f.days <= 0 {
		return errors.New("--days must be positive")
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	path, err := cfg.TelemetryPath()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); err != nil {
		if !cfg.Telemetry.Enabled {
			fmt.Fprintln(out, "Telemetry is disabled ([telemetry] enabled = false).")
		} else {
			fmt.Fprintln(out, "No turns recorded yet.")
		}
		return nil
	}

	store, err := telemetry.Open(path, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	now := time.Now()

	if f.prune > 0 {
		n, err := store.DeleteBefore(ctx, now.AddDate(0, 0, -f.prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d turn(s) older than %d days.\n\n", n, f.prune)
	}

	stats, err := store.ModelStats(ctx, now.AddDate(0, 0, -f.days))
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintf(out, "No turns in the last %d days.\n", f.days)
		return nil
	}

	fmt.Fprintf(out, "Turns in the last %d days\n\n", f.days)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tTURNS\tOK\tFAILED\tCANCELLED\tSUCCESS\tAVG TIME\tCHARS/S\tTOK/S\tLAST USED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.0f%%\t%s\t%.0f\t%s\t%s\n",
			s.Model, s.Turns, s.Completed, s.Failed, s.Cancelled,
			s.SuccessRate()*100,
			s.AvgDuration.Round(100*time.Millisecond),
			s.CharsPerSecond(),
			tokensPerSecond(s.TokensPerSecond),
			s.LastUsed.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()

	trendDays := min(f.days, 7)
	trends, err := store.Trends(ctx, trendDays, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nLast %d days\n\n", trendDays)
	for _, d := range trends {
		fmt.Fprintf(out, "%s  %-20s %d", d.Date.Format("Mon 01-02"), strings.Repeat("#", min(d.Turns, 20)), d.Turns)
		if d.Failed > 0 {
			fmt.Fprintf(out, " (%d failed)", d.Failed)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// tokensPerSecond formats a server-reported rate, "-" when there is none.
func tokensPerSecond(tps float64) string {
	if tps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", tps)
}
