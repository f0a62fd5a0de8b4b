// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DotEnvFiles are read, in order, before environment overrides apply.
var DotEnvFiles = []string{".env"}

// LoadDotEnv loads DotEnvFiles into the process environment. Variables
// already set are left alone and missing files are skipped.
func LoadDotEnv() error {
	for _, path := range DotEnvFiles {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
