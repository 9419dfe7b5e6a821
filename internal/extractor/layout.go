package extractor

import (
	"strings"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Synthetic page geometry for formats that carry none. Headings get a
// larger line height than body text, and paragraph breaks get a vertical
// gap wide enough to register as a boundary downstream.
const (
	bodyHeight   = 10.0
	leftMargin   = 50.0
	rightMargin  = 550.0
	topMargin    = 40.0
	pageBottom   = 780.0
	lineSpacing  = 2.0
	paragraphGap = 20.0
)

// maxNodeRunes caps the text carried by one synthetic node. Boundary
// detection downstream cuts between nodes only, so an oversized paragraph
// has to arrive pre-split to respect the chunk length cap.
const maxNodeRunes = 2000

// headingHeight maps a heading level to a synthetic line height. Every
// level stays comfortably above the body height so the jump is detectable.
func headingHeight(level int) float64 {
	h := 18.0 - 2.0*float64(level-1)
	if h < 13.5 {
		h = 13.5
	}
	return h
}

// layout accumulates nodes down a synthetic page, breaking to a new page
// when the cursor runs off the bottom.
type layout struct {
	page   int
	cursor float64
	nodes  []docmodel.RawNode
}

func newLayout() *layout {
	return &layout{page: 1, cursor: topMargin}
}

func (l *layout) add(text string, height float64, hint docmodel.ContentHint) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if l.cursor+height > pageBottom {
		l.page++
		l.cursor = topMargin
	}
	l.nodes = append(l.nodes, docmodel.RawNode{
		Page:   l.page,
		Text:   text,
		Height: height,
		BBox: docmodel.BBox{
			Left:   leftMargin,
			Top:    l.cursor,
			Right:  rightMargin,
			Bottom: l.cursor + height,
		},
		Confidence: 1.0,
		Hint:       hint,
	})
	l.cursor += height + lineSpacing
}

func (l *layout) addBody(text string) {
	for _, part := range splitLongText(text, maxNodeRunes) {
		l.add(part, bodyHeight, docmodel.HintText)
	}
}

// splitLongText breaks text into pieces of at most limit runes. Each cut
// prefers the last sentence end in the back half of the window and falls
// back to a hard cut at the limit.
func splitLongText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if isSentenceEnd(runes[i-1]) {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '。', '！', '？', '；':
		return true
	}
	return false
}

func (l *layout) addHeading(text string, level int) {
	l.add(text, headingHeight(level), docmodel.HintText)
}

func (l *layout) addTable(text string) {
	l.add(text, bodyHeight, docmodel.HintTable)
}

// breakParagraph widens the gap before the next node past the boundary
// threshold.
func (l *layout) breakParagraph() {
	if len(l.nodes) > 0 {
		l.cursor += paragraphGap - lineSpacing
	}
}

func (l *layout) stream() *Stream {
	return &Stream{Nodes: l.nodes, PageCount: l.page}
}
