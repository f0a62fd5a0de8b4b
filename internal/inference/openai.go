// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/openai"
)

// openaiProvider adapts openai.Client to Provider.
type openaiProvider struct {
	client *openai.Client
}

// NewOpenAI returns a Provider for an OpenAI-compatible server.
func NewOpenAI(baseURL, apiKey string) Provider {
	return &openaiProvider{client: openai.NewClient(&openai.Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
	})}
}

func (p *openaiProvider) Name() string     { return string(BackendOpenAI) }
func (p *openaiProvider) Endpoint() string { return p.client.BaseURL() }

func (p *openaiProvider) CheckRunning(ctx context.Context) error {
	return p.client.CheckRunning(ctx)
}

func (p *openaiProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, ModelInfo{Name: m.ID})
	}
	return out, nil
}

func (p *openaiProvider) OpenStream(ctx context.Context, modelID string, messages []model.Message) (Stream, error) {
	wire := make([]openai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, openai.ChatMessage{Role: m.Role.String(), Content: m.Content})
	}

	cs, err := p.client.OpenChatStream(ctx, modelID, wire)
	if err != nil {
		return nil, err
	}
	return &openaiStream{cs: cs}, nil
}

// openaiStream yields only non-empty deltas. The underlying stream reports
// io.EOF after the finish reason or [DONE].
type openaiStream struct {
	cs *openai.ChatStream
}

func (s *openaiStream) Recv() (Fragment, error) {
	for {
		chunk, err := s.cs.Next()
		if err != nil {
			return Fragment{}, err
		}
		if content := chunk.GetContent(); content != "" {
			return Fragment{Content: content}, nil
		}
	}
}

func (s *openaiStream) Close() error {
	return s.cs.Close()
}
