package main

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"nostr-columns/internal/types"
)

const previewMaxRunes = 140

// NotePreview returns a short plain-text preview of a note, used to
// seed composer screens (reply/quote). Long-form articles are markdown
// and get flattened first.
func NotePreview(note *types.Event) string {
	text := note.Content
	if note.Kind == types.KindLongForm {
		text = markdownToPlainText(text)
	}
	text = strings.Join(strings.Fields(text), " ")
	return truncateRunes(text, previewMaxRunes)
}

// markdownToPlainText flattens markdown to its visible text by walking
// the goldmark AST.
func markdownToPlainText(md string) string {
	source := []byte(md)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
