// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/lmchat/internal/inference"
	"github.com/jeranaias/lmchat/internal/model"
)

// Controller owns a single chat session. All methods are safe for
// concurrent use.
type Controller struct {
	mu sync.Mutex

	id       string
	registry *model.Registry
	client   inference.Client
	dispatch Dispatcher
	recorder TurnRecorder
	logger   *slog.Logger

	conv   *model.Conversation
	active model.Descriptor
	status Status
	input  string

	// Current turn. replyIdx is the conversation index of the turn's
	// assistant message, or -1 before its first fragment.
	turn      uint64
	turnModel string
	acc       strings.Builder
	reply     model.Message
	replyIdx  int
	fragments int
	started   time.Time
	idle      chan struct{}

	cancels *cancelManager

	observers  map[int]func(State)
	nextObsID  int
	observerMu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for stream errors and turn events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDispatcher replaces the default dispatcher, which calls Handle on
// the pump goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Controller) {
		if d != nil {
			c.dispatch = d
		}
	}
}

// WithRecorder sets the recorder that receives finished-turn summaries.
func WithRecorder(r TurnRecorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithModel selects the initial model. Unknown ids leave the default.
func WithModel(id string) Option {
	return func(c *Controller) {
		if desc, ok := c.registry.Lookup(id); ok {
			c.active = desc
		}
	}
}

// New creates an idle controller with an empty conversation. The initial
// model is model.DefaultModelID when the registry has it, otherwise the
// first registry entry.
func New(registry *model.Registry, client inference.Client, opts ...Option) *Controller {
	if registry == nil {
		registry = model.DefaultRegistry()
	}

	closed := make(chan struct{})
	close(closed)

	c := &Controller{
		id:        uuid.NewString(),
		registry:  registry,
		client:    client,
		logger:    slog.New(slog.DiscardHandler),
		conv:      model.NewConversation(),
		status:    StatusIdle,
		replyIdx:  -1,
		idle:      closed,
		cancels:   newCancelManager(),
		observers: make(map[int]func(State)),
	}
	c.dispatch = DispatchFunc(c.Handle)

	if desc, ok := registry.Lookup(model.DefaultModelID); ok {
		c.active = desc
	} else if list := registry.List(); len(list) > 0 {
		c.active = list[0]
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Submit appends text as a user message and starts streaming the reply.
// It returns false without changing anything when text is blank or a
// reply is already streaming.
func (c *Controller) Submit(text string) bool {
	c.mu.Lock()
	if strings.TrimSpace(text) == "" || c.status == StatusStreaming {
		c.mu.Unlock()
		return false
	}

	c.conv.Append(model.NewUserMessage(text))
	c.input = ""
	c.status = StatusStreaming
	c.turn++
	c.turnModel = c.active.ID
	c.acc.Reset()
	c.reply = model.Message{}
	c.replyIdx = -1
	c.fragments = 0
	c.started = time.Now()
	c.idle = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancels.set(cancel)

	turn := c.turn
	modelID := c.turnModel
	msgs := c.conv.Messages()
	c.mu.Unlock()

	c.logger.Info("turn started", "session", c.id, "turn", turn, "model", modelID, "messages", len(msgs))
	c.notify()

	go c.pump(ctx, turn, modelID, msgs)
	return true
}

// pump opens the reply stream and forwards everything it yields to the
// dispatcher. It stops silently once ctx is cancelled.
func (c *Controller) pump(ctx context.Context, turn uint64, modelID string, msgs []model.Message) {
	stream, err := c.client.OpenStream(ctx, modelID, msgs)
	if err != nil {
		if ctx.Err() == nil {
			c.dispatch.Dispatch(Event{Turn: turn, Kind: EventError, Err: err})
		}
		return
	}
	defer stream.Close()

	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	for {
		frag, err := stream.Recv()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.dispatch.Dispatch(Event{Turn: turn, Kind: EventComplete, Stats: streamStats(stream)})
			} else {
				c.dispatch.Dispatch(Event{Turn: turn, Kind: EventError, Err: err})
			}
			return
		}
		c.dispatch.Dispatch(Event{Turn: turn, Kind: EventFragment, Fragment: frag.Content})
	}
}

// Handle applies a stream event. Events for a turn other than the current
// one, and events arriving while idle, are ignored.
func (c *Controller) Handle(ev Event) {
	c.mu.Lock()
	if ev.Turn != c.turn || c.status != StatusStreaming {
		c.mu.Unlock()
		return
	}

	var end *turnEnd
	changed := true
	switch ev.Kind {
	case EventFragment:
		changed = c.applyFragmentLocked(ev.Fragment)
	case EventComplete:
		end = c.finishLocked(OutcomeCompleted, nil)
		end.addStats(ev.Stats)
	case EventError:
		end = c.finishLocked(OutcomeFailed, ev.Err)
	}
	c.mu.Unlock()

	if end != nil && end.summary.Outcome == OutcomeFailed {
		c.logger.Error("stream failed",
			"session", c.id,
			"turn", end.summary.Turn,
			"model", end.summary.ModelID,
			"partial_chars", end.summary.ReplyChars,
			"error", ev.Err)
	}
	c.finish(end)
	if changed {
		c.notify()
	}
}

// OnStreamFragment appends fragment to the current reply.
func (c *Controller) OnStreamFragment(fragment string) {
	c.Handle(Event{Turn: c.currentTurn(), Kind: EventFragment, Fragment: fragment})
}

// OnStreamComplete ends the current turn normally.
func (c *Controller) OnStreamComplete() {
	c.Handle(Event{Turn: c.currentTurn(), Kind: EventComplete})
}

// OnStreamError ends the current turn with err. The user message and any
// partial reply stay in the conversation.
func (c *Controller) OnStreamError(err error) {
	c.Handle(Event{Turn: c.currentTurn(), Kind: EventError, Err: err})
}

// Cancel aborts the in-flight stream and returns to idle at once, keeping
// any partial reply. It reports whether a stream was cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if c.status != StatusStreaming {
		c.mu.Unlock()
		return false
	}
	c.cancels.cancel()
	end := c.finishLocked(OutcomeCancelled, nil)
	c.mu.Unlock()

	c.logger.Info("turn cancelled", "session", c.id, "turn", end.summary.Turn, "partial_chars", end.summary.ReplyChars)
	c.finish(end)
	c.notify()
	return true
}

// Reset cancels any in-flight stream and clears the conversation. The
// active model is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	var end *turnEnd
	if c.status == StatusStreaming {
		c.cancels.cancel()
		end = c.finishLocked(OutcomeCancelled, nil)
	}
	c.conv.Clear()
	c.input = ""
	c.acc.Reset()
	c.reply = model.Message{}
	c.replyIdx = -1
	c.mu.Unlock()

	c.logger.Debug("session reset", "session", c.id)
	c.finish(end)
	c.notify()
}

// SelectModel switches the active model. Unknown ids change nothing and
// return false. The conversation is kept.
func (c *Controller) SelectModel(id string) bool {
	desc, ok := c.registry.Lookup(id)
	if !ok {
		return false
	}

	c.mu.Lock()
	c.active = desc
	c.mu.Unlock()

	c.logger.Debug("model selected", "session", c.id, "model", id)
	c.notify()
	return true
}

// EstimateTokenUsage returns ceil(chars/4) over every message in the
// conversation.
func (c *Controller) EstimateTokenUsage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.EstimateTokens()
}

// SetInput records the pending, not yet submitted input.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// WaitIdle blocks until the current turn has ended and its summary has
// reached the recorder, or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// Registry returns the model registry.
func (c *Controller) Registry() *model.Registry {
	return c.registry
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Model returns the active model descriptor.
func (c *Controller) Model() model.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Messages returns a copy of the conversation.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Messages()
}

func (c *Controller) currentTurn() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn
}

// =============================================================================
// INTERNALS
// =============================================================================

// applyFragmentLocked folds a fragment into the reply. Empty fragments
// change nothing and return false.
func (c *Controller) applyFragmentLocked(fragment string) bool {
	if fragment == "" {
		return false
	}

	c.acc.WriteString(fragment)
	c.fragments++

	if c.replyIdx < 0 {
		c.reply = model.NewAssistantMessage(c.acc.String())
		c.replyIdx = c.conv.Append(c.reply)
		return true
	}

	c.reply = c.reply.WithContent(c.acc.String())
	if err := c.conv.Replace(c.replyIdx, c.reply); err != nil {
		c.logger.Warn("reply slot missing", "turn", c.turn, "index", c.replyIdx)
		return false
	}
	return true
}

// turnEnd is a finished turn waiting to be recorded. idle is closed once
// the recorder has seen the summary.
type turnEnd struct {
	summary TurnSummary
	idle    chan struct{}
}

func (e *turnEnd) addStats(st *inference.Stats) {
	if st == nil {
		return
	}
	e.summary.PromptTokens = st.PromptTokens
	e.summary.CompletionTokens = st.CompletionTokens
	e.summary.TokensPerSecond = st.TokensPerSecond
}

// streamStats returns the server's accounting if the stream has any.
func streamStats(s inference.Stream) *inference.Stats {
	ss, ok := s.(inference.StatsStream)
	if !ok {
		return nil
	}
	st, ok := ss.Stats()
	if !ok {
		return nil
	}
	return &st
}

// finishLocked returns to idle and summarises the turn.
func (c *Controller) finishLocked(outcome Outcome, err error) *turnEnd {
	c.status = StatusIdle
	c.cancels.cancel()

	s := TurnSummary{
		SessionID:       c.id,
		Turn:            c.turn,
		ModelID:         c.turnModel,
		Outcome:         outcome,
		Fragments:       c.fragments,
		ReplyChars:      c.reply.CharCount(),
		EstimatedTokens: c.conv.EstimateTokens(),
		StartedAt:       c.started,
		Duration:        time.Since(c.started),
	}
	if err != nil {
		s.Error = err.Error()
		s.Err = err
	}
	return &turnEnd{summary: s, idle: c.idle}
}

// finish hands the summary to the recorder, then releases WaitIdle.
func (c *Controller) finish(end *turnEnd) {
	if end == nil {
		return
	}
	if c.recorder != nil {
		c.recorder.RecordTurn(end.summary)
	}
	close(end.idle)
}
