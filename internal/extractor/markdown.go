package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor handles Markdown files using goldmark. Headings become
// tall nodes, list items one node each, tables table-hinted nodes.
type MarkdownExtractor struct{}

func (p *MarkdownExtractor) Extract(_ context.Context, r io.Reader, _ string) (*Stream, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	l := newLayout()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		emitMarkdownBlock(l, n, src)
	}
	return l.stream(), nil
}

func emitMarkdownBlock(l *layout, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		l.breakParagraph()
		l.addHeading(string(node.Text(src)), node.Level)
	case *ast.List:
		l.breakParagraph()
		ordinal := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			t := markdownText(item, src)
			if t == "" {
				continue
			}
			if node.IsOrdered() {
				l.addBody(fmt.Sprintf("%d. %s", ordinal, t))
				ordinal++
			} else {
				l.addBody("- " + t)
			}
		}
	case *extast.Table:
		l.breakParagraph()
		var rows []string
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, markdownText(cell, src))
			}
			rows = append(rows, strings.Join(cells, " | "))
		}
		l.addTable(strings.Join(rows, "\n"))
	default:
		t := markdownText(n, src)
		if t != "" {
			l.breakParagraph()
			l.addBody(t)
		}
	}
}

// markdownText gets the text content of a goldmark AST node.
func markdownText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		} else {
			buf.WriteString(markdownText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
