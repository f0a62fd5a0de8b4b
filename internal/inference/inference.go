// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inference defines the streaming contract between the chat session
// and a local model server, with adapters for the Ollama and
// OpenAI-compatible wire protocols.
package inference

import (
	"context"
	"fmt"

	"github.com/jeranaias/lmchat/internal/model"
)

// Fragment is one increment of assistant text.
type Fragment struct {
	Content string
}

// Stats is the server's accounting for a finished reply.
type Stats struct {
	PromptTokens     int
	CompletionTokens int
	TokensPerSecond  float64
}

// Stream is an open reply stream. Recv returns io.EOF once the server has
// finished. Close aborts the transfer and may be called from any goroutine,
// more than once.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}

// StatsStream is a Stream that can report Stats once Recv has returned
// io.EOF. ok is false when the server sent no accounting.
type StatsStream interface {
	Stream
	Stats() (stats Stats, ok bool)
}

// ModelInfo describes a model the server has available.
type ModelInfo struct {
	Name string
	Size string // human-readable, empty when the server doesn't say
}

// Client opens reply streams for a model and message history.
type Client interface {
	OpenStream(ctx context.Context, modelID string, messages []model.Message) (Stream, error)
}

// Provider is a Client that can also describe the server behind it.
type Provider interface {
	Client

	// Name identifies the backend ("ollama" or "openai").
	Name() string

	// Endpoint is the base URL requests go to.
	Endpoint() string

	// CheckRunning returns nil if the server answers.
	CheckRunning(ctx context.Context) error

	// ListModels lists the models the server has available.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Backend names a wire protocol.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
)

// Options selects and configures a backend.
type Options struct {
	Backend       Backend
	OllamaURL     string
	OpenAIBaseURL string
	OpenAIKey     string
}

// New builds the Provider named by opts.Backend. An empty backend selects
// Ollama.
func New(opts Options) (Provider, error) {
	switch opts.Backend {
	case BackendOllama, "":
		return NewOllama(opts.OllamaURL), nil
	case BackendOpenAI:
		return NewOpenAI(opts.OpenAIBaseURL, opts.OpenAIKey), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected ollama or openai)", opts.Backend)
	}
}
