// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// HighlightStyle is the chroma style used for code blocks.
const HighlightStyle = "monokai"

// Highlight colors code for a 256-color terminal. An empty or unknown
// language is guessed from the code. On any failure the code is returned
// unchanged.
func Highlight(code, language string) string {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(HighlightStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// Block is a run of reply text. Code blocks carry their fence language.
type Block struct {
	Code     bool
	Language string
	Text     string
}

// SplitFences splits content on ``` fences. An unterminated fence runs to
// the end, which is what a reply looks like mid-stream.
func SplitFences(content string) []Block {
	var (
		blocks []Block
		cur    strings.Builder
		inCode bool
		lang   string
	)

	flush := func() {
		if cur.Len() == 0 && !inCode {
			return
		}
		blocks = append(blocks, Block{Code: inCode, Language: lang, Text: cur.String()})
		cur.Reset()
	}

	lines := strings.SplitAfter(content, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				flush()
				inCode = false
				lang = ""
			} else {
				flush()
				inCode = true
				lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			}
			continue
		}
		cur.WriteString(line)
	}
	flush()
	return blocks
}

// Plain returns content as written, with fence markers kept and fenced
// code highlighted when highlight is true.
func Plain(content string, highlight bool) string {
	if !highlight || !strings.Contains(content, "```") {
		return content
	}

	var out strings.Builder
	for _, b := range SplitFences(content) {
		if !b.Code {
			out.WriteString(b.Text)
			continue
		}
		out.WriteString("```" + b.Language + "\n")
		out.WriteString(Highlight(b.Text, b.Language))
		if !strings.HasSuffix(b.Text, "\n") {
			out.WriteByte('\n')
		}
		out.WriteString("```\n")
	}
	return strings.TrimSuffix(out.String(), "\n")
}
