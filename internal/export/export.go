// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/session"
	"github.com/jeranaias/lmchat/internal/util"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("conversation has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Message is one exported message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is the exported form of a session.
type Transcript struct {
	SessionID       string    `json:"session_id"`
	Title           string    `json:"title"`
	ModelID         string    `json:"model"`
	ModelName       string    `json:"model_name,omitempty"`
	EstimatedTokens int       `json:"estimated_tokens"`
	StartedAt       time.Time `json:"started_at"`
	ExportedAt      time.Time `json:"exported_at"`
	Messages        []Message `json:"messages"`
}

// FromState builds a transcript from a session snapshot.
func FromState(st session.State, now time.Time) *Transcript {
	t := &Transcript{
		SessionID:       st.SessionID,
		Title:           model.Title(st.Messages),
		ModelID:         st.Model.ID,
		ModelName:       st.Model.Name,
		EstimatedTokens: st.EstimatedTokens,
		ExportedAt:      now,
		Messages:        make([]Message, 0, len(st.Messages)),
	}
	for _, msg := range st.Messages {
		t.Messages = append(t.Messages, Message{
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	if len(st.Messages) > 0 {
		t.StartedAt = st.Messages[0].CreatedAt
	}
	return t
}

// =============================================================================
// EXPORTERS
// =============================================================================

// Exporter converts a transcript to a file format.
type Exporter interface {
	// Export returns the encoded transcript.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a metadata header (Markdown only).
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times (Markdown only).
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// Formats lists the accepted format names.
var Formats = []string{"md", "json"}

// ExporterFor returns the exporter for a format name: "md", "markdown"
// or "json".
func ExporterFor(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (use %s)", format, strings.Join(Formats, " or "))
	}
}

// ToFile exports t with exporter into opts.OutputDir and returns the
// file path.
func ToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if t == nil || len(t.Messages) == 0 {
		return "", ErrEmpty
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	stamp := t.ExportedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	filename := fmt.Sprintf("lmchat_%s_%s%s",
		sanitizeFilename(t.Title),
		stamp.Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, filename)
	if err := util.WriteFileAtomic(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames on
// any common platform and caps the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}

	if len(out) == 0 {
		return "conversation"
	}
	return string(out)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
