// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inferencetest provides a scripted inference.Client for tests.
package inferencetest

import (
	"context"
	"io"
	"sync"

	"github.com/jeranaias/lmchat/internal/inference"
	"github.com/jeranaias/lmchat/internal/model"
)

// Call records one OpenStream invocation.
type Call struct {
	ModelID  string
	Messages []model.Message
}

// Client replays Fragments on every stream it opens. After the fragments
// the stream returns Err, or io.EOF when Err is nil. When Hold is set the
// stream instead blocks after the fragments until it is closed or its
// context ends. OpenErr makes OpenStream fail. Stats, when set, is what
// every stream reports once it has finished.
type Client struct {
	Fragments []string
	Err       error
	OpenErr   error
	Hold      bool
	Stats     *inference.Stats

	mu      sync.Mutex
	calls   []Call
	streams []*Stream
}

// OpenStream implements inference.Client.
func (c *Client) OpenStream(ctx context.Context, modelID string, messages []model.Message) (inference.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]model.Message, len(messages))
	copy(msgs, messages)
	c.calls = append(c.calls, Call{ModelID: modelID, Messages: msgs})

	if c.OpenErr != nil {
		return nil, c.OpenErr
	}

	s := &Stream{
		ctx:       ctx,
		fragments: append([]string(nil), c.Fragments...),
		err:       c.Err,
		hold:      c.Hold,
		stats:     c.Stats,
		closed:    make(chan struct{}),
	}
	c.streams = append(c.streams, s)
	return s, nil
}

// Calls returns the recorded invocations.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Streams returns every stream opened so far.
func (c *Client) Streams() []*Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Stream(nil), c.streams...)
}

// Stream is the scripted inference.Stream.
type Stream struct {
	ctx       context.Context
	fragments []string
	err       error
	hold      bool
	stats     *inference.Stats

	pos       int
	closed    chan struct{}
	closeOnce sync.Once
}

// Recv implements inference.Stream.
func (s *Stream) Recv() (inference.Fragment, error) {
	select {
	case <-s.closed:
		return inference.Fragment{}, io.ErrClosedPipe
	default:
	}

	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return inference.Fragment{Content: f}, nil
	}

	if s.hold {
		select {
		case <-s.closed:
			return inference.Fragment{}, io.ErrClosedPipe
		case <-s.ctx.Done():
			return inference.Fragment{}, s.ctx.Err()
		}
	}

	if s.err != nil {
		return inference.Fragment{}, s.err
	}
	return inference.Fragment{}, io.EOF
}

// Stats implements inference.StatsStream.
func (s *Stream) Stats() (inference.Stats, bool) {
	if s.stats == nil {
		return inference.Stats{}, false
	}
	return *s.stats, true
}

// Close implements inference.Stream.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
