// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := ": keep-alive\n\n" +
		"event: message\ndata: {\"a\":1}\n\n" +
		"data: line1\ndata: line2\n\n" +
		"data: [DONE]"

	r := NewSSEReader(strings.NewReader(input))

	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "message", typ)
	assert.Equal(t, `{"a":1}`, string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", string(data))

	_, _, err = r.ReadEvent()
	assert.Equal(t, io.EOF, err)
}

func TestSSEReader_ChunkTooLarge(t *testing.T) {
	input := "data: " + strings.Repeat("x", MaxChunkSize+10) + "\n\n"
	r := NewSSEReader(strings.NewReader(input))

	_, _, err := r.ReadEvent()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk too large")
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func sseServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-local"})
}

func deltaEvent(content, finish string) string {
	chunk := map[string]any{
		"id":    "chatcmpl-1",
		"model": "local-model",
		"choices": []map[string]any{{
			"delta":         map[string]string{"content": content},
			"finish_reason": finish,
		}},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b) + "\n\n"
}

func drain(t *testing.T, s *ChatStream) string {
	t.Helper()
	var out strings.Builder
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return out.String()
		}
		require.NoError(t, err)
		out.WriteString(chunk.GetContent())
	}
}

func TestOpenChatStream(t *testing.T) {
	var got ChatRequest
	var auth string
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, deltaEvent("Hello", ""))
		io.WriteString(w, "data: {not json}\n\n")
		io.WriteString(w, deltaEvent(" there", ""))
		io.WriteString(w, deltaEvent("", "stop"))
		io.WriteString(w, "data: [DONE]\n\n")
	})

	stream, err := c.OpenChatStream(context.Background(), "qwen2.5-coder", []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "Hello there", drain(t, stream))
	assert.Equal(t, "Bearer sk-local", auth)
	assert.Equal(t, "qwen2.5-coder", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)

	// Reads after the end stay at EOF
	_, err = stream.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenChatStream_DoneWithoutFinishReason(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, deltaEvent("ok", ""))
		io.WriteString(w, "data: [DONE]\n\n")
		io.WriteString(w, deltaEvent("ignored", ""))
	})

	stream, err := c.OpenChatStream(context.Background(), "m", nil)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "ok", drain(t, stream))
}

func TestOpenChatStream_FinishReasonWithoutDone(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, deltaEvent("ok", ""))
		io.WriteString(w, deltaEvent("", "stop"))
	})

	stream, err := c.OpenChatStream(context.Background(), "m", nil)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "ok", drain(t, stream))
}

func TestOpenChatStream_TruncatedBody(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, deltaEvent("par", ""))
	})

	stream, err := c.OpenChatStream(context.Background(), "m", nil)
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "par", chunk.GetContent())

	_, err = stream.Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = stream.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenChatStream_MidStreamError(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, deltaEvent("par", ""))
		io.WriteString(w, `data: {"error":{"message":"context overflow"}}`+"\n\n")
	})

	stream, err := c.OpenChatStream(context.Background(), "m", nil)
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "par", chunk.GetContent())

	_, err = stream.Next()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "context overflow", apiErr.Message)
}

func TestOpenChatStream_ErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found json", http.StatusNotFound, `{"error":{"message":"no such model"}}`, ErrModelNotFound},
		{"not found plain", http.StatusNotFound, `nope`, ErrModelNotFound},
		{"unauthorized", http.StatusUnauthorized, ``, ErrAuthFailed},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.OpenChatStream(context.Background(), "m", nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenChatStream_ServerError(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"code":"oom","message":"out of memory"}}`)
	})

	_, err := c.OpenChatStream(context.Background(), "m", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "server error [oom] (HTTP 500): out of memory", apiErr.Error())
}

func TestOpenChatStream_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(&Config{BaseURL: url})
	_, err := c.OpenChatStream(context.Background(), "m", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestOpenChatStream_Cancelled(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: [DONE]\n\n")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.OpenChatStream(ctx, "m", nil)
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
}

// =============================================================================
// MODEL LIST TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	c := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"object":"list","data":[{"id":"qwen2.5-coder","owned_by":"me"},{"id":"phi3"}]}`)
	})

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "qwen2.5-coder", models[0].ID)
	assert.Equal(t, "me", models[0].OwnedBy)
	assert.Equal(t, "phi3", models[1].ID)
	assert.NoError(t, c.CheckRunning(context.Background()))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c = NewClient(&Config{BaseURL: "http://localhost:8080/v1/"})
	assert.Equal(t, "http://localhost:8080/v1", c.BaseURL())
}
