// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/bureau-foundation/foyer/lib/tui"
)

// messageParserInstance is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to
// share — parsing creates per-call state via Parse(reader).
var (
	messageParserInstance goldmark.Markdown
	messageParserOnce     sync.Once
)

func getMessageParser() goldmark.Markdown {
	messageParserOnce.Do(func() {
		messageParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough),
		)
	})
	return messageParserInstance
}

// renderMessageBody renders a chat message body as styled terminal
// text. Chat messages are a narrow slice of markdown: paragraphs with
// inline emphasis, inline code, and fenced code blocks highlighted
// through chroma. Soft line breaks within a paragraph become spaces so
// the text reflows at the timeline width; everything structural beyond
// that renders as plain wrapped text.
func renderMessageBody(input string, theme tui.Theme, width int) string {
	if input == "" {
		return ""
	}
	if width < 8 {
		width = 8
	}
	source := []byte(input)
	document := getMessageParser().Parser().Parse(text.NewReader(source))

	// Force ANSI256: output is always for the bubbletea TUI, and
	// auto-detection yields uncolored output without a TTY (tests).
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &messageRenderer{
		source:      source,
		theme:       theme,
		width:       width,
		lipRenderer: lipRenderer,
	}
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

// messageRenderer walks a goldmark AST accumulating inline content per
// block, then word-wraps each block as a unit when it closes.
type messageRenderer struct {
	source []byte
	theme  tui.Theme
	width  int

	output strings.Builder
	inline strings.Builder

	boldCount          int
	italicCount        int
	strikethroughCount int

	lipRenderer *lipgloss.Renderer
}

func (r *messageRenderer) newStyle() lipgloss.Style {
	return r.lipRenderer.NewStyle()
}

func (r *messageRenderer) styledText(content string) string {
	style := r.newStyle().Foreground(r.theme.NormalText)
	if r.boldCount > 0 {
		style = style.Bold(true)
	}
	if r.italicCount > 0 {
		style = style.Italic(true)
	}
	if r.strikethroughCount > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// flushInline word-wraps the accumulated inline content and appends it
// to the output as a closed block.
func (r *messageRenderer) flushInline() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}
	r.output.WriteString(ansi.Wrap(content, r.width, " ,.;-+|"))
	r.output.WriteString("\n")
}

// highlightCode syntax-highlights a fenced code block through chroma,
// falling back to faint plain text for unknown languages.
func (r *messageRenderer) highlightCode(code, language string) string {
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			return buffer.String()
		}
	}
	return r.newStyle().Foreground(r.theme.FaintText).Render(code)
}

func (r *messageRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch typed := node.(type) {

	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		if !entering {
			r.flushInline()
		}

	case *ast.Text:
		if entering {
			r.inline.WriteString(r.styledText(string(typed.Segment.Value(r.source))))
			if typed.SoftLineBreak() {
				r.inline.WriteString(" ")
			} else if typed.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}

	case *extast.Strikethrough:
		if entering {
			r.strikethroughCount++
		} else {
			r.strikethroughCount--
		}

	case *ast.Emphasis:
		if typed.Level >= 2 {
			if entering {
				r.boldCount++
			} else {
				r.boldCount--
			}
		} else {
			if entering {
				r.italicCount++
			} else {
				r.italicCount--
			}
		}

	case *ast.CodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if segment, ok := child.(*ast.Text); ok {
					code.Write(segment.Segment.Value(r.source))
				}
			}
			r.inline.WriteString(r.newStyle().
				Foreground(r.theme.MediaText).
				Render(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case *ast.FencedCodeBlock:
		if entering {
			r.flushInline()
			var code strings.Builder
			for i := 0; i < typed.Lines().Len(); i++ {
				line := typed.Lines().At(i)
				code.Write(line.Value(r.source))
			}
			language := string(typed.Language(r.source))
			r.output.WriteString(r.highlightCode(strings.TrimRight(code.String(), "\n"), language))
			r.output.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}

	case *ast.CodeBlock:
		if entering {
			r.flushInline()
			var code strings.Builder
			for i := 0; i < typed.Lines().Len(); i++ {
				line := typed.Lines().At(i)
				code.Write(line.Value(r.source))
			}
			r.output.WriteString(r.newStyle().
				Foreground(r.theme.FaintText).
				Render(strings.TrimRight(code.String(), "\n")))
			r.output.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}

	case *ast.Blockquote:
		// Rendered as its inner blocks with a faint marker line; chat
		// quotes are short, so no nested prefix stack.
		if entering {
			r.inline.WriteString(r.newStyle().Foreground(r.theme.FaintText).Render("> "))
		}

	case *ast.ListItem:
		if entering {
			r.inline.WriteString(r.styledText("• "))
		} else {
			r.flushInline()
		}

	case *ast.Link:
		if !entering {
			r.inline.WriteString(r.newStyle().
				Foreground(r.theme.FaintText).
				Render(" (" + string(typed.Destination) + ")"))
		}

	case *ast.AutoLink:
		if entering {
			r.inline.WriteString(r.newStyle().
				Foreground(r.theme.MediaText).
				Underline(true).
				Render(string(typed.URL(r.source))))
		}
	}

	return ast.WalkContinue, nil
}
