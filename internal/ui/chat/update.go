// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/lmchat/internal/session"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		return m.handleEvent(msg.Event)

	case flushMsg:
		m.throttle.flushed()
		m.refresh()
		return m, nil

	case DisplayMsg:
		m.applyDisplay(msg.Render)
		return m, m.setNotice("display settings reloaded", false)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeErr = false
		}
		return m, nil

	case spinner.TickMsg:
		if !m.session.State().Streaming() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleEvent applies a stream event. Fragments redraw through the
// throttle; the end of a turn always redraws.
func (m Model) handleEvent(ev session.Event) (tea.Model, tea.Cmd) {
	before := m.session.State()
	live := before.Streaming() && before.Turn == ev.Turn

	m.session.Handle(ev)
	if !live {
		return m, nil
	}

	switch ev.Kind {
	case session.EventFragment:
		ok, cmd := m.throttle.allow()
		if ok {
			m.refresh()
		}
		return m, cmd

	case session.EventError:
		m.refresh()
		notice := fmt.Sprintf("request failed: %v", ev.Err)
		if m.opts.Hint != nil {
			if hint := m.opts.Hint(before.Model.ID, ev.Err); hint != "" {
				notice += " (" + hint + ")"
			}
		}
		return m, m.setNotice(notice, true)

	default:
		m.refresh()
		return m, nil
	}
}

// handleKey maps key presses to session operations.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if !m.session.Cancel() {
			return m, nil
		}
		m.refresh()
		return m, m.setNotice("reply cancelled", false)

	case key.Matches(msg, m.keys.Reset):
		m.session.Reset()
		m.input.Reset()
		clear(m.cache)
		m.refresh()
		return m, m.setNotice("conversation cleared", false)

	case key.Matches(msg, m.keys.NextModel):
		next, ok := m.session.Registry().Next(m.session.Model().ID)
		if !ok {
			return m, nil
		}
		m.session.Reset()
		m.session.SelectModel(next.ID)
		clear(m.cache)
		m.refresh()
		return m, m.setNotice(fmt.Sprintf("switched to %s, conversation cleared", next.DisplayName()), false)

	case key.Matches(msg, m.keys.Copy):
		reply, ok := m.session.State().LastReply()
		if !ok {
			return m, m.setNotice("nothing to copy yet", false)
		}
		if err := m.copy(reply); err != nil {
			m.logger.Warn("clipboard write failed", "error", err)
			return m, m.setNotice(fmt.Sprintf("copy failed: %v", err), true)
		}
		return m, m.setNotice("reply copied to clipboard", false)

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetInput(m.input.Value())
	return m, cmd
}

// submit sends the input as a new turn.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := norm.NFC.String(m.input.Value())
	if !m.session.Submit(text) {
		if m.session.State().Streaming() {
			return m, m.setNotice("a reply is still streaming, Esc cancels it", false)
		}
		return m, nil
	}

	m.input.Reset()
	m.refresh()
	return m, m.spinner.Tick
}
