// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lmchat/internal/config"
	"github.com/jeranaias/lmchat/internal/inference"
	"github.com/jeranaias/lmchat/internal/inference/inferencetest"
	"github.com/jeranaias/lmchat/internal/logging"
	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/ollama"
	"github.com/jeranaias/lmchat/internal/openai"
	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeProvider is a scripted backend with a configurable model list.
type fakeProvider struct {
	*inferencetest.Client
	models []inference.ModelInfo
	down   error
}

func (p *fakeProvider) Name() string     { return "ollama" }
func (p *fakeProvider) Endpoint() string { return "http://fake:11434" }

func (p *fakeProvider) CheckRunning(ctx context.Context) error { return p.down }

func (p *fakeProvider) ListModels(ctx context.Context) ([]inference.ModelInfo, error) {
	if p.down != nil {
		return nil, p.down
	}
	return p.models, nil
}

func installed(names ...string) []inference.ModelInfo {
	out := make([]inference.ModelInfo, 0, len(names))
	for _, n := range names {
		out = append(out, inference.ModelInfo{Name: n, Size: "4.4 GB"})
	}
	return out
}

// setup isolates the config directory and installs p as the backend.
func setup(t *testing.T, p *fakeProvider) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("LMCHAT_HOME", home)
	for _, k := range []string{"LMCHAT_BACKEND", "LMCHAT_MODEL", "LMCHAT_TELEMETRY", "LMCHAT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	old := newProvider
	newProvider = func(inference.Options) (inference.Provider, error) { return p, nil }
	t.Cleanup(func() { newProvider = old })
	return home
}

// run executes the root command with args and stdin.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func newTestREPL(t *testing.T, client *inferencetest.Client) (*repl, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	last := &lastTurn{}
	ctrl := session.New(model.DefaultRegistry(), client,
		session.WithLogger(logging.Discard()),
		session.WithRecorder(last))
	r := newREPL(ctrl, &out, last, t.TempDir())
	t.Cleanup(r.close)
	return r, &out
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestVersionCommand(t *testing.T) {
	setup(t, &fakeProvider{Client: &inferencetest.Client{}})

	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lmchat dev")
}

func TestAsk_RawStreamsReply(t *testing.T) {
	client := &inferencetest.Client{Fragments: []string{"Hel", "lo"}}
	setup(t, &fakeProvider{Client: client})

	out, err := run(t, "", "ask", "--raw", "hi", "there")
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", out)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.DefaultModelID, calls[0].ModelID)
	require.Len(t, calls[0].Messages, 1)
	assert.Equal(t, "hi there", calls[0].Messages[0].Content)
}

func TestAsk_PromptFromStdinRendered(t *testing.T) {
	client := &inferencetest.Client{Fragments: []string{"**Hello**"}}
	setup(t, &fakeProvider{Client: client})

	out, err := run(t, "what is up\n", "ask", "-m", "mistral")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mistral", calls[0].ModelID)
	assert.Equal(t, "what is up", calls[0].Messages[0].Content)
}

func TestAsk_FailedTurn(t *testing.T) {
	client := &inferencetest.Client{Fragments: []string{"par"}, Err: errors.New("connection reset")}
	setup(t, &fakeProvider{Client: client})

	out, err := run(t, "", "ask", "--raw", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "http://fake:11434")
	assert.True(t, strings.HasPrefix(out, "par\n"))
}

func TestAsk_FailureHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not running", ollama.ErrNotRunning, "(start it with: ollama serve)"},
		{"model missing", ollama.ErrModelNotFound, "(try: ollama pull mistral)"},
		{"timeout", ollama.ErrTimeout, "a large model may still be loading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup(t, &fakeProvider{Client: &inferencetest.Client{OpenErr: tt.err}})

			_, err := run(t, "", "ask", "--raw", "-m", "mistral", "hi")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "request to http://fake:11434 failed")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAsk_UnknownModel(t *testing.T) {
	client := &inferencetest.Client{Fragments: []string{"x"}}
	setup(t, &fakeProvider{Client: client})

	_, err := run(t, "", "ask", "-m", "nope", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown model "nope"`)
	assert.Contains(t, err.Error(), "llama3.1, mistral")
	assert.Empty(t, client.Calls())
}

func TestAsk_RecordsTelemetry(t *testing.T) {
	setup(t, &fakeProvider{Client: &inferencetest.Client{Fragments: []string{"Hello"}}})

	_, err := run(t, "", "ask", "--raw", "hi")
	require.NoError(t, err)

	out, err := run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL")
	assert.Contains(t, out, model.DefaultModelID)
	assert.Contains(t, out, "100%")
}

func TestStats_ShowsServerTokenRate(t *testing.T) {
	client := &inferencetest.Client{
		Fragments: []string{"Hello"},
		Stats:     &inference.Stats{PromptTokens: 12, CompletionTokens: 40, TokensPerSecond: 20},
	}
	setup(t, &fakeProvider{Client: client})

	_, err := run(t, "", "ask", "--raw", "hi")
	require.NoError(t, err)

	out, err := run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "TOK/S")
	assert.Contains(t, out, "20.0")
}

func TestStats_NothingRecorded(t *testing.T) {
	setup(t, &fakeProvider{Client: &inferencetest.Client{}})

	out, err := run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No turns recorded yet.")

	t.Setenv("LMCHAT_TELEMETRY", "false")
	out, err = run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Telemetry is disabled")

	_, err = run(t, "", "stats", "--days", "0")
	require.Error(t, err)
}

func TestModels_MarksInstalled(t *testing.T) {
	setup(t, &fakeProvider{
		Client: &inferencetest.Client{},
		models: installed("llama3.1:8b", "tinyllama:latest"),
	})

	out, err := run(t, "", "models")
	require.NoError(t, err)

	var defaultRow, mistralRow string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "llama3.1 *") {
			defaultRow = line
		}
		if strings.HasPrefix(line, "mistral ") {
			mistralRow = line
		}
	}
	require.NotEmpty(t, defaultRow, out)
	require.NotEmpty(t, mistralRow, out)
	defaultFields := strings.Fields(defaultRow)
	assert.Equal(t, []string{"4.4", "GB", "yes"}, defaultFields[len(defaultFields)-3:], defaultRow)
	mistralFields := strings.Fields(mistralRow)
	assert.Equal(t, []string{"-", "no"}, mistralFields[len(mistralFields)-2:], mistralRow)
	assert.Contains(t, defaultRow, "Long context")
	assert.Contains(t, out, "SIZE")
	assert.Contains(t, out, "Also on the server (add a [[models]] entry to use): tinyllama:latest")
}

func TestModels_ServerDown(t *testing.T) {
	setup(t, &fakeProvider{Client: &inferencetest.Client{}, down: ollama.ErrNotRunning})

	out, err := run(t, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "not reachable")
	assert.Contains(t, out, "(start it with: ollama serve)")
	assert.Contains(t, out, "?")
}

func TestDoctor(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		setup(t, &fakeProvider{Client: &inferencetest.Client{}, models: installed("llama3.1")})

		out, err := run(t, "", "doctor")
		require.NoError(t, err)
		assert.Contains(t, out, "[PASS] Backend: ollama at http://fake:11434")
		assert.Contains(t, out, "[PASS] Installed models: llama3.1 installed, 4.4 GB (1 total)")
		assert.Contains(t, out, "schema v2")
		assert.Contains(t, out, "0 failed")
	})

	t.Run("model missing", func(t *testing.T) {
		setup(t, &fakeProvider{Client: &inferencetest.Client{}, models: installed("phi3")})

		out, err := run(t, "", "doctor")
		require.NoError(t, err)
		assert.Contains(t, out, "[WARN] Installed models")
		assert.Contains(t, out, "ollama pull llama3.1")
	})

	t.Run("server down", func(t *testing.T) {
		setup(t, &fakeProvider{Client: &inferencetest.Client{}, down: ollama.ErrNotRunning})

		out, err := run(t, "", "doctor")
		require.Error(t, err)
		assert.Contains(t, out, "[FAIL] Backend")
		assert.Contains(t, out, "(start it with: ollama serve)")
	})

	t.Run("other failure has no hint", func(t *testing.T) {
		setup(t, &fakeProvider{Client: &inferencetest.Client{}, down: errors.New("tls handshake failed")})

		out, err := run(t, "", "doctor")
		require.Error(t, err)
		assert.Contains(t, out, "[FAIL] Backend: ollama at http://fake:11434: tls handshake failed\n")
	})
}

func TestConfigSetGet(t *testing.T) {
	home := setup(t, &fakeProvider{Client: &inferencetest.Client{}})

	out, err := run(t, "", "config", "set", "ui.word_wrap", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "ui.word_wrap updated")

	path := filepath.Join(home, "config.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err = run(t, "", "config", "get", "ui.word_wrap")
	require.NoError(t, err)
	assert.Equal(t, "100\n", out)

	out, err = run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	out, err = run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"word_wrap": 100`)
}

func TestConfig_JSONFileIsActive(t *testing.T) {
	home := setup(t, &fakeProvider{Client: &inferencetest.Client{}})
	jsonPath := filepath.Join(home, "config.json")
	tomlPath := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"default_model": "phi3"}`), 0600))

	p, err := configPath(&globalFlags{})
	require.NoError(t, err)
	assert.Equal(t, jsonPath, p, "the watcher follows the file that was loaded")

	out, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, jsonPath+"\n", out)

	out, err = run(t, "", "config", "set", "ui.word_wrap", "90")
	require.NoError(t, err)
	assert.Contains(t, out, "updated in "+tomlPath)

	out, err = run(t, "", "config", "get", "default_model")
	require.NoError(t, err)
	assert.Equal(t, "phi3\n", out, "JSON values carried into the TOML file")

	out, err = run(t, "", "config", "get", "ui.word_wrap")
	require.NoError(t, err)
	assert.Equal(t, "90\n", out)

	_, err = run(t, "", "--config", jsonPath, "config", "set", "ui.word_wrap", "80")
	require.Error(t, err)
}

func TestConfigSet_Rejected(t *testing.T) {
	home := setup(t, &fakeProvider{Client: &inferencetest.Client{}})

	_, err := run(t, "", "config", "set", "ui.word_wrap", "5")
	require.Error(t, err)

	_, err = run(t, "", "config", "set", "nope.key", "1")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(home, "config.toml"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigGet_RedactsKey(t *testing.T) {
	setup(t, &fakeProvider{Client: &inferencetest.Client{}})
	t.Setenv("LMCHAT_OPENAI_API_KEY", "sk-secret")

	out, err := run(t, "", "config", "get", "openai.api_key")
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]\n", out)
}

// =============================================================================
// REPL
// =============================================================================

func TestREPL_Turn(t *testing.T) {
	r, out := newTestREPL(t, &inferencetest.Client{Fragments: []string{"Hello", " there"}})

	quit := r.handle(context.Background(), "hi")
	assert.False(t, quit)
	assert.Equal(t, "Hello there\n", out.String())

	msgs := r.ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello there", msgs[1].Content)
}

func TestREPL_FailedTurn(t *testing.T) {
	r, out := newTestREPL(t, &inferencetest.Client{OpenErr: errors.New("connection refused")})

	r.handle(context.Background(), "hi")
	assert.Contains(t, out.String(), "[error] request failed: connection refused")
	assert.Equal(t, session.StatusIdle, r.ctrl.Status())
}

func TestREPL_FailedTurnHint(t *testing.T) {
	r, out := newTestREPL(t, &inferencetest.Client{OpenErr: ollama.ErrNotRunning})
	r.provider = &fakeProvider{Client: &inferencetest.Client{}}

	r.handle(context.Background(), "hi")
	assert.Contains(t, out.String(), "[error] request failed: Ollama is not running (start it with: ollama serve)")
}

func TestCancelOnInterrupt(t *testing.T) {
	ctrl := session.New(model.DefaultRegistry(), &inferencetest.Client{Hold: true},
		session.WithLogger(logging.Discard()))
	require.True(t, ctrl.Submit("hi"))

	var out bytes.Buffer
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		cancelOnInterrupt(ctrl, &out, sigs, done)
		close(exited)
	}()

	sigs <- os.Interrupt
	require.Eventually(t, func() bool { return ctrl.Status() == session.StatusIdle },
		2*time.Second, 10*time.Millisecond)

	close(done)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt handler still running after done was closed")
	}
	assert.Contains(t, out.String(), "[cancelled]")
}

func TestREPL_Commands(t *testing.T) {
	r, out := newTestREPL(t, &inferencetest.Client{Fragments: []string{"ok"}})

	tests := []struct {
		input string
		want  string
		quit  bool
	}{
		{"/help", "/export [md|json]", false},
		{"/model", "llama3.1 (Llama 3.1", false},
		{"/model nope", `unknown model "nope"`, false},
		{"/model mistral", "model: mistral", false},
		{"/models", "* mistral", false},
		{"/tokens", "tokens", false},
		{"/bogus", "unknown command /bogus", false},
		{"/quit", "", true},
		{"exit", "", true},
		{"   ", "", false},
	}

	for _, tt := range tests {
		out.Reset()
		quit := r.handle(context.Background(), tt.input)
		assert.Equal(t, tt.quit, quit, tt.input)
		assert.Contains(t, out.String(), tt.want, tt.input)
	}
	assert.Equal(t, "mistral", r.ctrl.Model().ID)
}

func TestREPL_ClearAndExport(t *testing.T) {
	r, out := newTestREPL(t, &inferencetest.Client{Fragments: []string{"pong"}})
	ctx := context.Background()

	r.handle(ctx, "/export")
	assert.Contains(t, out.String(), "[error]")

	r.handle(ctx, "ping")
	out.Reset()
	r.handle(ctx, "/export json")
	assert.Contains(t, out.String(), "exported to ")

	files, err := filepath.Glob(filepath.Join(r.exportDir, "lmchat_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "pong")

	r.handle(ctx, "/clear")
	assert.Empty(t, r.ctrl.Messages())
}

// =============================================================================
// HELPERS
// =============================================================================

func TestReadPrompt(t *testing.T) {
	p, err := readPrompt(strings.NewReader("ignored"), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a b", p)

	p, err = readPrompt(strings.NewReader("  from stdin \n"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", p)

	// Decomposed e + combining acute becomes the composed form.
	p, err = readPrompt(strings.NewReader(""), []string{"cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", p)

	_, err = readPrompt(strings.NewReader("   "), nil)
	require.Error(t, err)
}

func TestInstalledModels(t *testing.T) {
	set := installedModels([]inference.ModelInfo{
		{Name: "llama3.1:8b", Size: "4.9 GB"},
		{Name: "phi3", Size: "2.2 GB"},
		{Name: "llama3.1", Size: "4.7 GB"},
	})
	assert.Equal(t, "4.9 GB", set["llama3.1:8b"].Size)
	assert.Equal(t, "4.7 GB", set["llama3.1"].Size, "exact name wins over a tagged one")
	assert.Contains(t, set, "phi3")
	assert.NotContains(t, set, "mistral")

	set = installedModels([]inference.ModelInfo{{Name: "qwen2.5-coder:14b"}})
	assert.Contains(t, set, "qwen2.5-coder")
}

func TestBackendHint(t *testing.T) {
	ollamaP := &fakeProvider{Client: &inferencetest.Client{}}

	assert.Equal(t, "start it with: ollama serve", backendHint(ollamaP, "phi3", ollama.ErrNotRunning))
	assert.Equal(t, "try: ollama pull phi3", backendHint(ollamaP, "phi3", fmt.Errorf("open: %w", ollama.ErrModelNotFound)))
	assert.Empty(t, backendHint(ollamaP, "phi3", errors.New("boom")))
	assert.Empty(t, backendHint(ollamaP, "phi3", nil))

	openaiP := inference.NewOpenAI("http://127.0.0.1:1/v1", "")
	assert.Equal(t, "load phi3 in the server first", backendHint(openaiP, "phi3", openai.ErrModelNotFound))
	assert.Equal(t, "start the server or check openai.base_url",
		backendHint(openaiP, "phi3", fmt.Errorf("%w: dial tcp", openai.ErrNotRunning)))

	assert.Equal(t, "failed", withHint("failed", ""))
	assert.Equal(t, "failed (do x)", withHint("failed", "do x"))
}

func TestStreamPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newStreamPrinter(&out)

	assistant := func(turn uint64, content string) session.State {
		return session.State{
			Turn: turn,
			Messages: []model.Message{
				model.NewUserMessage("q"),
				model.NewAssistantMessage(content),
			},
		}
	}

	p.observe(session.State{Turn: 1, Messages: []model.Message{model.NewUserMessage("q")}})
	assert.False(t, p.wrote())

	p.observe(assistant(1, "Hel"))
	p.observe(assistant(1, "Hello"))
	p.observe(assistant(1, "Hel")) // stale snapshot
	assert.Equal(t, "Hello", out.String())
	assert.True(t, p.wrote())

	p.observe(assistant(2, "Hi"))
	p.observe(assistant(1, "Hello again"))
	assert.Equal(t, "HelloHi", out.String())
}

func TestRenderOptionsFor_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().UI
	opts := renderOptionsFor(cfg, &buf)
	assert.Equal(t, render.ThemeNoTTY, opts.Theme)
	assert.Equal(t, DefaultTerminalWidth-2, opts.WordWrap)

	cfg.WordWrap = 60
	opts = renderOptionsFor(cfg, &buf)
	assert.Equal(t, 60, opts.WordWrap)
}
