// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting lmchat..."
	}

	st := m.session.State()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(st),
		m.viewport.View(),
		m.theme.InputBorder.Width(max(10, m.width-2)).Render(m.input.View()),
		m.statusView(st),
		m.theme.StatusMuted.Render(render.Truncate(m.keys.HelpLine(), m.width)),
	)
}

func (m Model) headerView(st session.State) string {
	title := m.theme.HeaderTitle.Render("lmchat")
	sub := m.theme.StatusMuted.Render(" " + st.Model.DisplayName())
	return m.theme.Header.Width(m.width).Render(title + sub)
}

// statusView renders the status line: model, status, token estimate and
// the current notice.
func (m Model) statusView(st session.State) string {
	parts := []string{m.theme.StatusModel.Render(st.Model.ID)}

	if st.Streaming() {
		parts = append(parts, m.theme.StatusStreaming.Render(m.spinner.View()+" streaming"))
	} else {
		parts = append(parts, m.theme.StatusIdle.Render("idle"))
	}

	parts = append(parts, m.theme.Usage(st.ContextUsage).Render(TokenSummary(st)))

	if m.notice != "" {
		style := m.theme.Notice
		if m.noticeErr {
			style = m.theme.ErrorText
		}
		parts = append(parts, style.Render(m.notice))
	}

	line := strings.Join(parts, m.theme.StatusMuted.Render(" | "))
	return m.theme.StatusBar.Width(m.width).Render(line)
}

// TokenSummary formats the token estimate against the model's context
// length, e.g. "~120 / 128000 tokens (0%)".
func TokenSummary(st session.State) string {
	if st.Model.ContextLength <= 0 {
		return fmt.Sprintf("~%d tokens", st.EstimatedTokens)
	}
	return fmt.Sprintf("~%d / %d tokens (%.0f%%)", st.EstimatedTokens, st.Model.ContextLength, st.ContextUsage*100)
}

// refresh redraws the transcript from the session state.
func (m *Model) refresh() {
	if !m.ready {
		return
	}

	st := m.session.State()
	follow := m.viewport.AtBottom() || st.Streaming()

	m.viewport.SetContent(m.transcript(st))
	if follow {
		m.viewport.GotoBottom()
	}
}

// transcript renders every message, plus a pending marker while the first
// fragment of a reply is awaited.
func (m *Model) transcript(st session.State) string {
	if len(st.Messages) == 0 {
		return m.theme.Notice.Render(fmt.Sprintf("Chatting with %s. Type a message and press Enter.", st.Model.DisplayName()))
	}

	var b strings.Builder
	for i, msg := range st.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg))
	}

	if st.Streaming() {
		if last := st.Messages[len(st.Messages)-1]; last.Role == model.RoleUser {
			b.WriteString("\n\n")
			b.WriteString(m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
			b.WriteString("\n")
			b.WriteString(m.theme.MessageBody.Render(m.spinner.View() + " thinking..."))
		}
	}
	return b.String()
}

// renderMessage renders one message, reusing the cached output when the
// content and width are unchanged.
func (m *Model) renderMessage(msg model.Message) string {
	width := m.wrapWidth()
	if c, ok := m.cache[msg.ID]; ok && c.content == msg.Content && c.width == width {
		return c.out
	}

	var label, body string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
		body = render.Wrap(msg.Content, width)
	default:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		body = m.renderer.Render(msg.Content)
	}

	out := label + "\n" + m.theme.MessageBody.Render(body)
	m.cache[msg.ID] = renderedMessage{content: msg.Content, width: width, out: out}
	return out
}
