// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxChunkSize is the maximum allowed size for a single SSE event (64KB).
const MaxChunkSize = 64 * 1024

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single chunk of a streaming completion.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// IsDone returns true if the chunk carries a finish reason.
func (c *StreamChunk) IsDone() bool {
	return c.GetFinishReason() != ""
}

// GetFinishReason returns the finish reason if streaming is complete.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event and returns its type and data.
// Multiple data lines are joined with newlines. Returns io.EOF when the
// stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				line = bytes.TrimRight(line, "\r\n")
				if bytes.HasPrefix(line, []byte("data:")) {
					dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
				}
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		size += len(line)
		if size > MaxChunkSize {
			return "", nil, fmt.Errorf("chunk too large: %d bytes", size)
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			size = 0
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream is an open streaming completion.
type ChatStream struct {
	body      io.ReadCloser
	reader    *SSEReader
	done      bool
	closeOnce sync.Once
	closeErr  error
}

func newChatStream(body io.ReadCloser) *ChatStream {
	return &ChatStream{
		body:   body,
		reader: NewSSEReader(body),
	}
}

// Next returns the next chunk. Malformed events are skipped. After the
// [DONE] sentinel or a chunk with a finish reason, Next returns io.EOF. A
// body that ends before either yields io.ErrUnexpectedEOF. An error object
// sent mid-stream is returned as an *APIError.
func (cs *ChatStream) Next() (StreamChunk, error) {
	for !cs.done {
		_, data, err := cs.reader.ReadEvent()
		if err != nil {
			cs.done = true
			if err == io.EOF {
				return StreamChunk{}, io.ErrUnexpectedEOF
			}
			return StreamChunk{}, fmt.Errorf("stream interrupted: %w", err)
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			cs.done = true
			break
		}

		var apiErr apiErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			cs.done = true
			return StreamChunk{}, &APIError{Code: apiErr.Error.Code, Message: apiErr.Error.Message}
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}

		if chunk.IsDone() {
			cs.done = true
		}
		return chunk, nil
	}
	return StreamChunk{}, io.EOF
}

// Close releases the response body. Safe to call more than once.
func (cs *ChatStream) Close() error {
	cs.closeOnce.Do(func() {
		cs.closeErr = cs.body.Close()
	})
	return cs.closeErr
}
