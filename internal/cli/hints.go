// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "github.com/jeranaias/lmchat/internal/inference"

// backendHint suggests a fix for a failed backend call, or returns "".
func backendHint(p inference.Provider, modelID string, err error) string {
	switch {
	case err == nil:
		return ""
	case inference.IsNotRunning(err):
		if isOllama(p) {
			return "start it with: ollama serve"
		}
		return "start the server or check openai.base_url"
	case inference.IsModelNotFound(err):
		return missingModelHint(p, modelID)
	case inference.IsTimeout(err):
		return "the server is slow to answer; a large model may still be loading"
	default:
		return ""
	}
}

// missingModelHint tells the user how to get modelID onto the server.
func missingModelHint(p inference.Provider, modelID string) string {
	if isOllama(p) {
		return "try: ollama pull " + modelID
	}
	return "load " + modelID + " in the server first"
}

// withHint appends hint to msg in parentheses.
func withHint(msg, hint string) string {
	if hint == "" {
		return msg
	}
	return msg + " (" + hint + ")"
}

func isOllama(p inference.Provider) bool {
	return p.Name() == string(inference.BackendOllama)
}
