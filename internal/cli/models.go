// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lmchat/internal/inference"
)

// backendTimeout bounds backend calls made by models and doctor.
const backendTimeout = 5 * time.Second

func newModelsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and which ones the server has",
		Long: "Lists the model registry (built-in models plus [[models]] entries " +
			"from the config) and marks the ones the backend reports as installed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd, g)
		},
	}
}

// installedModels indexes server models both by name and by name without a
// ":tag" suffix, so "llama3.1:8b" marks "llama3.1" as installed. An exact
// name wins over a base match.
func installedModels(models []inference.ModelInfo) map[string]inference.ModelInfo {
	set := make(map[string]inference.ModelInfo, len(models)*2)
	for _, m := range models {
		if base, _, ok := strings.Cut(m.Name, ":"); ok {
			if _, exact := set[base]; !exact {
				set[base] = m
			}
		}
	}
	for _, m := range models {
		set[m.Name] = m
	}
	return set
}

func runModels(cmd *cobra.Command, g *globalFlags) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), backendTimeout)
	defer cancel()

	models, listErr := a.provider.ListModels(ctx)
	installed := installedModels(models)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONTEXT\tCAPABILITIES\tSIZE\tINSTALLED")

	known := make(map[string]bool)
	for _, d := range a.registry.List() {
		known[d.ID] = true

		id := d.ID
		if id == a.cfg.DefaultModel {
			id += " *"
		}
		status, size := "?", "-"
		if listErr == nil {
			status = "no"
			if m, ok := installed[d.ID]; ok {
				status = "yes"
				if m.Size != "" {
					size = m.Size
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id, d.DisplayName(), d.ContextString(), d.CapabilitiesString(), size, status)
	}
	w.Flush()

	if listErr != nil {
		msg := fmt.Sprintf("%s backend at %s not reachable: %v", a.provider.Name(), a.provider.Endpoint(), listErr)
		fmt.Fprintf(out, "\n%s\n", withHint(msg, backendHint(a.provider, a.cfg.DefaultModel, listErr)))
		return nil
	}

	var extra []string
	for _, m := range models {
		base, _, _ := strings.Cut(m.Name, ":")
		if !known[m.Name] && !known[base] {
			extra = append(extra, m.Name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		fmt.Fprintf(out, "\nAlso on the server (add a [[models]] entry to use): %s\n", strings.Join(extra, ", "))
	}
	return nil
}
