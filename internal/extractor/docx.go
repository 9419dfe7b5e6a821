package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXExtractor handles .docx files. Heading styles set node height.
type DOCXExtractor struct{}

func (p *DOCXExtractor) Extract(_ context.Context, r io.Reader, _ string) (*Stream, error) {
	// go-docx needs a ReadSeeker+size, so write to a temp file.
	tmp, err := os.CreateTemp("", "docstruct-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	l := newLayout()
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(v)
			if text == "" {
				continue
			}
			if level := docxHeadingLevel(v); level > 0 {
				l.breakParagraph()
				l.addHeading(text, level)
			} else {
				l.breakParagraph()
				l.addBody(text)
			}
		case *docx.Table:
			l.breakParagraph()
			l.addTable(docxTableText(v))
		}
	}
	return l.stream(), nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch style[len(style)-1] {
	case '1':
		return 1
	case '2':
		return 2
	case '3':
		return 3
	case '4':
		return 4
	case '5':
		return 5
	case '6':
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableText(table *docx.Table) string {
	var rows []string
	for _, tr := range table.TableRows {
		var cells []string
		for _, tc := range tr.TableCells {
			var cell strings.Builder
			for _, para := range tc.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					if cell.Len() > 0 {
						cell.WriteString(" ")
					}
					cell.WriteString(t)
				}
			}
			cells = append(cells, cell.String())
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}
