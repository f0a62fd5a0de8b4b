// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lmchat/internal/config"
	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
)

// Run starts the chat TUI for ctrl and blocks until the user quits or ctx
// is done. ctrl must have been created with d as its dispatcher.
func Run(ctx context.Context, ctrl *session.Controller, d *Dispatcher, opts Options) error {
	m, err := New(ctrl, opts)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	d.Attach(p)
	defer d.Attach(nil)

	if opts.ConfigPath != "" {
		w, err := config.Watch(opts.ConfigPath, config.DefaultDebounce, func(cfg *config.Config, err error) {
			if err != nil {
				m.logger.Warn("config reload failed", "path", opts.ConfigPath, "error", err)
				return
			}
			p.Send(DisplayMsg{Render: render.FromConfig(cfg.UI)})
		})
		if err != nil {
			m.logger.Warn("config watch unavailable", "path", opts.ConfigPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	_, err = p.Run()
	ctrl.Cancel()

	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}
