package extractor

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// TextExtractor handles plain text files. Blank lines delimit paragraphs.
type TextExtractor struct{}

func (p *TextExtractor) Extract(_ context.Context, r io.Reader, _ string) (*Stream, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	l := newLayout()
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			l.breakParagraph()
			l.addBody(current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(strings.TrimSpace(line))
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l.stream(), nil
}
