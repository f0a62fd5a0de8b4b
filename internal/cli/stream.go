// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"sync"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/session"
)

// streamPrinter writes the growing assistant reply to w as it streams.
// It is a session observer; snapshots may arrive out of order from
// different goroutines, so only content past what was printed is written.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	turn    uint64
	printed int
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// observe is registered with Controller.Subscribe.
func (p *streamPrinter) observe(st session.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Turn < p.turn {
		return
	}
	if st.Turn > p.turn {
		p.turn = st.Turn
		p.printed = 0
	}
	if len(st.Messages) == 0 {
		return
	}
	last := st.Messages[len(st.Messages)-1]
	if last.Role != model.RoleAssistant || len(last.Content) <= p.printed {
		return
	}
	io.WriteString(p.w, last.Content[p.printed:])
	p.printed = len(last.Content)
}

// wrote reports whether anything was printed for the current turn.
func (p *streamPrinter) wrote() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed > 0
}
