// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lmchat/internal/config"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(g)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print one config value",
		Long:  "Prints one value by dotted key. Keys: " + strings.Join(config.GetAllKeys(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok && s != "" && strings.EqualFold(args[0], "openai.api_key") {
				v = "[REDACTED]"
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one value in the config file",
		Long: "Writes one value into the config file, creating it if needed. " +
			"Environment overrides are not baked in. Keys: " + strings.Join(config.GetAllKeys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(g)
			if err != nil {
				return err
			}
			// A default config.json is carried over into config.toml, which
			// then takes precedence.
			target := path
			if strings.HasSuffix(path, ".json") {
				if g.configPath != "" {
					return fmt.Errorf("%s is JSON; config set only writes TOML files", path)
				}
				target = strings.TrimSuffix(path, ".json") + ".toml"
			}
			if err := setConfigValue(path, target, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated in %s\n", args[0], target)
			return nil
		},
	})

	return cmd
}

// setConfigValue reads src (TOML or JSON, if it exists), sets key and
// writes the result to dst as TOML. Only the file's own values and
// defaults are written back.
func setConfigValue(src, dst, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(src); err == nil {
		load := config.LoadTOML
		if strings.HasSuffix(src, ".json") {
			load = config.LoadJSON
		}
		if err := load(cfg, src); err != nil {
			return err
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.SaveTOML(cfg, dst)
}
