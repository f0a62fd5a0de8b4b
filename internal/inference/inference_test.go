// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/ollama"
	"github.com/jeranaias/lmchat/internal/openai"
)

func collect(t *testing.T, s Stream) []string {
	t.Helper()
	defer s.Close()

	var out []string
	for {
		f, err := s.Recv()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, f.Content)
	}
}

func TestNew(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, "http://127.0.0.1:11434", p.Endpoint())

	p, err = New(Options{Backend: BackendOpenAI, OpenAIBaseURL: "http://localhost:8080/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "http://localhost:8080/v1", p.Endpoint())

	_, err = New(Options{Backend: "bedrock"})
	assert.Error(t, err)
}

func TestOllamaProvider_OpenStream(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"role":"assistant","content":"Hello"},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"role":"assistant","content":" there"},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true,"eval_count":2}`+"\n")
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	msgs := []model.Message{model.NewUserMessage("hi")}
	s, err := p.OpenStream(context.Background(), "llama3.1", msgs)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " there"}, collect(t, s))
	ss, ok := s.(StatsStream)
	require.True(t, ok)
	stats, ok := ss.Stats()
	require.True(t, ok)
	assert.Equal(t, 2, stats.CompletionTokens)
	assert.Equal(t, "llama3.1", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[0].Content)
}

func TestOpenAIProvider_OpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"", "Hel", "lo"} {
			io.WriteString(w, `data: {"choices":[{"delta":{"content":"`+c+`"}}]}`+"\n\n")
		}
		io.WriteString(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "")
	s, err := p.OpenStream(context.Background(), "phi3", []model.Message{model.NewUserMessage("hi")})
	require.NoError(t, err)

	assert.Equal(t, "Hello", strings.Join(collect(t, s), ""))
}

func TestOllamaProvider_OpenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).OpenStream(context.Background(), "missing", nil)
	assert.True(t, IsModelNotFound(err), "err = %v", err)
	assert.False(t, IsNotRunning(err))
}

func TestOllamaProvider_Stats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"Hi"},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"content":"!"},"done":true,"prompt_eval_count":12,"eval_count":40,"eval_duration":2000000000}`+"\n")
	}))
	defer srv.Close()

	s, err := NewOllama(srv.URL).OpenStream(context.Background(), "llama3.1", nil)
	require.NoError(t, err)

	ss := s.(StatsStream)
	_, ok := ss.Stats()
	assert.False(t, ok, "no stats before the final chunk")

	assert.Equal(t, []string{"Hi", "!"}, collect(t, s))
	stats, ok := ss.Stats()
	require.True(t, ok)
	assert.Equal(t, Stats{PromptTokens: 12, CompletionTokens: 40, TokensPerSecond: 20}, stats)
}

func TestOllamaProvider_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"Hel"},"done":false}`+"\n")
	}))
	defer srv.Close()

	s, err := NewOllama(srv.URL).OpenStream(context.Background(), "llama3.1", nil)
	require.NoError(t, err)
	defer s.Close()

	f, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hel", f.Content)

	_, err = s.Recv()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestOpenAIProvider_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n\n")
	}))
	defer srv.Close()

	s, err := NewOpenAI(srv.URL, "").OpenStream(context.Background(), "phi3", nil)
	require.NoError(t, err)
	defer s.Close()

	f, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hel", f.Content)

	_, err = s.Recv()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestListModels(t *testing.T) {
	ollamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":[{"name":"llama3.1:latest","size":4700000000},{"name":"phi3:mini","size":2048}]}`)
	}))
	defer ollamaSrv.Close()

	models, err := NewOllama(ollamaSrv.URL).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ModelInfo{
		{Name: "llama3.1", Size: "4.4 GB"},
		{Name: "phi3:mini", Size: "2.0 KB"},
	}, models)

	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":"qwen2.5-coder"}]}`)
	}))
	defer openaiSrv.Close()

	models, err = NewOpenAI(openaiSrv.URL, "").ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ModelInfo{{Name: "qwen2.5-coder"}}, models)
}

func TestErrorClassification(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	err := NewOllama(url).CheckRunning(context.Background())
	assert.True(t, IsNotRunning(err), "ollama err = %v", err)

	err = NewOpenAI(url, "").CheckRunning(context.Background())
	assert.True(t, IsNotRunning(err), "openai err = %v", err)
	assert.False(t, IsModelNotFound(err))

	assert.True(t, IsModelNotFound(fmt.Errorf("open: %w", openai.ErrModelNotFound)))
	assert.True(t, IsModelNotFound(ollama.ErrModelNotFound))
	assert.True(t, IsTimeout(ollama.ErrTimeout))
	assert.False(t, IsTimeout(errors.New("boom")))
}
