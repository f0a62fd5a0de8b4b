// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/lmchat/internal/config"
	"github.com/jeranaias/lmchat/internal/inference"
	"github.com/jeranaias/lmchat/internal/logging"
	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/session"
	"github.com/jeranaias/lmchat/internal/telemetry"
)

// newProvider builds the inference backend. Tests swap it for a fake.
var newProvider = inference.New

// app holds what every session-running command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *model.Registry
	provider inference.Provider
	store    *telemetry.Store
	closers  []io.Closer
}

// loadConfig loads the config file named by --config (or the default one)
// and applies the global flag overrides.
func loadConfig(g *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromPath(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if g.backend != "" {
		cfg.Backend = g.backend
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// configPath returns the file the config was (or would be) read from.
func configPath(g *globalFlags) (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ActivePath()
}

// inferenceOptions maps the config onto backend options.
func inferenceOptions(cfg *config.Config) inference.Options {
	return inference.Options{
		Backend:       inference.Backend(cfg.Backend),
		OllamaURL:     cfg.Ollama.URL,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIKey:     cfg.OpenAI.APIKey,
	}
}

// newApp loads config and opens the log file, the backend and, when
// enabled, the telemetry store. Log and telemetry failures degrade
// quietly; config and backend failures are fatal.
func newApp(g *globalFlags) (*app, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logging.Discard()}

	if path, err := cfg.LogPath(); err == nil {
		if logger, closer, err := logging.OpenFile(path, cfg.Log.Level); err == nil {
			a.logger = logger
			a.closers = append(a.closers, closer)
		}
	}

	a.registry = model.DefaultRegistry(cfg.Models...)
	if g.model != "" {
		if _, ok := a.registry.Lookup(g.model); !ok {
			a.Close()
			return nil, fmt.Errorf("unknown model %q (known: %s)", g.model, strings.Join(a.registry.IDs(), ", "))
		}
	}

	provider, err := newProvider(inferenceOptions(cfg))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.provider = provider

	if cfg.Telemetry.Enabled {
		if err := a.openTelemetry(); err != nil {
			a.logger.Warn("telemetry disabled", "error", err)
		}
	}

	a.logger.Debug("lmchat starting",
		"version", Version,
		"backend", provider.Name(),
		"endpoint", provider.Endpoint(),
		"models", a.registry.Len())
	return a, nil
}

func (a *app) openTelemetry() error {
	path, err := a.cfg.TelemetryPath()
	if err != nil {
		return err
	}
	store, err := telemetry.Open(path, a.logger)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store)
	return nil
}

// recorder returns the telemetry recorder, or nil when telemetry is off.
func (a *app) recorder() session.TurnRecorder {
	if a.store == nil {
		return nil
	}
	return a.store
}

// newController creates a session on the configured backend. The starting
// model is --model, else default_model from the config.
func (a *app) newController(g *globalFlags, opts ...session.Option) *session.Controller {
	modelID := a.cfg.DefaultModel
	if g.model != "" {
		modelID = g.model
	}

	base := []session.Option{
		session.WithLogger(a.logger),
		session.WithModel(modelID),
	}
	if rec := a.recorder(); rec != nil {
		base = append(base, session.WithRecorder(rec))
	}
	return session.New(a.registry, a.provider, append(base, opts...)...)
}

// Close releases the log file and telemetry store.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// lastTurn remembers the most recent turn summary and passes it on.
type lastTurn struct {
	mu      sync.Mutex
	next    session.TurnRecorder
	summary session.TurnSummary
	ok      bool
}

// RecordTurn implements session.TurnRecorder.
func (l *lastTurn) RecordTurn(s session.TurnSummary) {
	l.mu.Lock()
	l.summary = s
	l.ok = true
	l.mu.Unlock()

	if l.next != nil {
		l.next.RecordTurn(s)
	}
}

// get returns the last summary, if any turn has finished.
func (l *lastTurn) get() (session.TurnSummary, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summary, l.ok
}
