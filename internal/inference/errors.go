// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"errors"

	"github.com/jeranaias/lmchat/internal/ollama"
	"github.com/jeranaias/lmchat/internal/openai"
)

// IsNotRunning reports whether err means the server could not be reached.
func IsNotRunning(err error) bool {
	return ollama.IsNotRunning(err) || errors.Is(err, openai.ErrNotRunning)
}

// IsModelNotFound reports whether err means the server doesn't have the
// requested model.
func IsModelNotFound(err error) bool {
	return ollama.IsModelNotFound(err) || errors.Is(err, openai.ErrModelNotFound)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return ollama.IsTimeout(err)
}
