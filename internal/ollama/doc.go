// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The client covers what a chat session needs: a health check, the list of
// installed models and streaming chat completions over /api/chat, which
// Ollama delivers as newline-delimited JSON.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: chat message with role and content
//   - ChatStream: an open streaming response, read chunk by chunk
//   - StreamChunk: one parsed line of the stream
//
// # Usage
//
//	client := ollama.NewClient()
//	stream, err := client.OpenChatStream(ctx, "llama3.1", []ollama.Message{
//	    {Role: "user", Content: "Hello"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err // io.ErrUnexpectedEOF when the body ends early
//	    }
//	    fmt.Print(chunk.Content)
//	}
package ollama
