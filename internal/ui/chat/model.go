// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
	"github.com/jeranaias/lmchat/internal/ui/styles"
)

// noticeTTL is how long a footer notice stays up.
const noticeTTL = 4 * time.Second

// Layout rows outside the transcript: header, input box (3), status, help.
const chromeRows = 6

// Options configures the chat view.
type Options struct {
	Render render.Options
	MaxFPS int

	// ConfigPath, when set, is watched and display settings are reloaded
	// when it changes.
	ConfigPath string

	// Clipboard writes the copied reply. Defaults to the system clipboard.
	Clipboard func(string) error

	// Hint, when set, suggests a fix for a failed request.
	Hint func(modelID string, err error) string

	Logger *slog.Logger
}

// renderedMessage caches the rendered form of one message.
type renderedMessage struct {
	content string
	width   int
	out     string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	session *session.Controller
	keys    KeyMap
	opts    Options
	logger  *slog.Logger

	// Styling
	theme    *styles.Theme
	renderer *render.Renderer

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Dimensions
	width  int
	height int
	ready  bool

	throttle *renderThrottle
	cache    map[string]renderedMessage
	copy     func(string) error

	// Footer notice
	notice    string
	noticeErr bool
	noticeSeq int
}

// New creates the chat view for ctrl.
func New(ctrl *session.Controller, opts Options) (Model, error) {
	renderer, err := render.New(opts.Render)
	if err != nil {
		return Model{}, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Placeholder = "Ask something..."
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		session:  ctrl,
		keys:     DefaultKeyMap(),
		opts:     opts,
		logger:   logger,
		theme:    styles.NewTheme(renderer.Theme()),
		renderer: renderer,
		viewport: viewport.New(0, 0),
		input:    ti,
		spinner:  sp,
		throttle: newRenderThrottle(opts.MaxFPS),
		cache:    make(map[string]renderedMessage),
		copy:     copyFn,
	}, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Session returns the controller behind the view.
func (m Model) Session() *session.Controller {
	return m.session
}

// Notice returns the footer notice, if any.
func (m Model) Notice() string {
	return m.notice
}

// setNotice shows text in the footer and returns the command that clears it.
func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

// resize lays the components out for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	m.viewport.Width = width
	m.viewport.Height = max(1, height-chromeRows)
	m.input.Width = max(10, width-6)

	m.rebuildRenderer()
}

// wrapWidth is the reply wrap width: the configured value, or the
// transcript width less the body indent.
func (m *Model) wrapWidth() int {
	if m.opts.Render.WordWrap > 0 {
		return m.opts.Render.WordWrap
	}
	if m.width > 10 {
		return m.width - 4
	}
	return render.DefaultWrap
}

// rebuildRenderer recreates the renderer after a size or settings change.
func (m *Model) rebuildRenderer() {
	opts := m.opts.Render
	opts.WordWrap = m.wrapWidth()

	r, err := render.New(opts)
	if err != nil {
		m.logger.Warn("renderer rebuild failed", "error", err)
		return
	}
	m.renderer = r
	clear(m.cache)
}

// applyDisplay swaps in new display settings.
func (m *Model) applyDisplay(opts render.Options) {
	m.opts.Render = opts
	m.rebuildRenderer()
	m.theme = styles.NewTheme(m.renderer.Theme())
	m.refresh()
}
