// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and watches lmchat's configuration.
//
// # Configuration Precedence
//
// Later sources override earlier ones:
//   - Built-in defaults
//   - ~/.lmchat/config.toml, or ~/.lmchat/config.json when no TOML exists
//   - A .env file in the working directory (never overrides the real
//     environment)
//   - Environment variables (LMCHAT_*, plus OLLAMA_HOST)
//
// LMCHAT_HOME relocates the configuration directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry := model.DefaultRegistry(cfg.Models...)
package config
