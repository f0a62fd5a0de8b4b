// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"
	"io"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/ollama"
)

// ollamaProvider adapts ollama.Client to Provider.
type ollamaProvider struct {
	client *ollama.Client
}

// NewOllama returns a Provider for the Ollama server at baseURL. An empty
// URL uses the Ollama default.
func NewOllama(baseURL string) Provider {
	cfg := ollama.DefaultConfig()
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ollamaProvider{client: ollama.NewClientWithConfig(cfg)}
}

func (p *ollamaProvider) Name() string     { return string(BackendOllama) }
func (p *ollamaProvider) Endpoint() string { return p.client.GetConfig().BaseURL }

func (p *ollamaProvider) CheckRunning(ctx context.Context) error {
	return p.client.CheckRunning(ctx)
}

func (p *ollamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, ModelInfo{Name: m.ShortName(), Size: m.FormatSize()})
	}
	return out, nil
}

func (p *ollamaProvider) OpenStream(ctx context.Context, modelID string, messages []model.Message) (Stream, error) {
	wire := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, ollama.Message{Role: m.Role.String(), Content: m.Content})
	}

	cs, err := p.client.OpenChatStream(ctx, modelID, wire)
	if err != nil {
		return nil, err
	}
	return &ollamaStream{cs: cs}, nil
}

// ollamaStream yields only non-empty content and keeps the statistics
// from the final chunk.
type ollamaStream struct {
	cs       *ollama.ChatStream
	stats    Stats
	hasStats bool
}

func (s *ollamaStream) Recv() (Fragment, error) {
	for {
		chunk, err := s.cs.Next()
		if err != nil {
			return Fragment{}, err
		}
		if chunk.Done {
			s.stats = Stats{
				PromptTokens:     chunk.PromptTokens,
				CompletionTokens: chunk.CompletionTokens,
				TokensPerSecond:  chunk.TokensPerSecond(),
			}
			s.hasStats = true
		}
		if chunk.Content != "" {
			return Fragment{Content: chunk.Content}, nil
		}
		if chunk.Done {
			return Fragment{}, io.EOF
		}
	}
}

func (s *ollamaStream) Stats() (Stats, bool) {
	return s.stats, s.hasStats
}

func (s *ollamaStream) Close() error {
	return s.cs.Close()
}
