// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// maxLineSize bounds a single NDJSON line (1MB).
const maxLineSize = 1024 * 1024

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
type StreamReader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamReader{scanner: scanner}
}

// Next returns the next chunk. Empty and malformed lines are skipped.
// After the chunk flagged Done Next returns io.EOF. A body that ends before
// that chunk yields io.ErrUnexpectedEOF. An error object in the stream is
// returned as a ClientError.
func (s *StreamReader) Next() (StreamChunk, error) {
	if s.done {
		return StreamChunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp chatLine
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}

		if resp.Error != "" {
			s.done = true
			return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
		}

		return s.toChunk(resp), nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return StreamChunk{}, &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
	}
	return StreamChunk{}, io.ErrUnexpectedEOF
}

// toChunk converts a parsed line into a StreamChunk.
func (s *StreamReader) toChunk(resp chatLine) StreamChunk {
	chunk := StreamChunk{
		Content: resp.Message.Content,
		Done:    resp.Done,
	}

	// On completion, extract statistics
	if resp.Done {
		s.done = true
		chunk.EvalDuration = time.Duration(resp.EvalDuration)
		chunk.PromptTokens = resp.PromptEvalCount
		chunk.CompletionTokens = resp.EvalCount
	}

	return chunk
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream is an open streaming /api/chat response.
type ChatStream struct {
	body      io.ReadCloser
	reader    *StreamReader
	closeOnce sync.Once
	closeErr  error
}

func newChatStream(body io.ReadCloser) *ChatStream {
	return &ChatStream{
		body:   body,
		reader: NewStreamReader(body),
	}
}

// Next returns the next chunk, or io.EOF once the stream has finished.
func (cs *ChatStream) Next() (StreamChunk, error) {
	return cs.reader.Next()
}

// Close releases the response body. It is safe to call more than once and
// from a different goroutine than the one calling Next.
func (cs *ChatStream) Close() error {
	cs.closeOnce.Do(func() {
		cs.closeErr = cs.body.Close()
	})
	return cs.closeErr
}
