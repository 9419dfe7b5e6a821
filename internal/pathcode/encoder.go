// Package pathcode assigns hierarchical path codes to the raw node stream of
// one document. An Encoder is stateful within a document (heading stack,
// per-parent block counters) and must not be shared across documents.
package pathcode

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Encoder annotates raw nodes with path codes in document order.
type Encoder struct {
	rules    Rules
	stack    []string       // open heading components, zero-padded
	blocks   map[string]int // per-parent auto-block counters
	captions map[string]int // per-parent caption counters (hint-only captions)
	seen     map[string]bool
}

// New creates an encoder for a single document.
func New(rules Rules) *Encoder {
	if rules.MaxHeadingLen <= 0 {
		rules.MaxHeadingLen = 200
	}
	if rules.ShortLineLimit <= 0 {
		rules.ShortLineLimit = 20
	}
	if rules.HeightRatio <= 0 {
		rules.HeightRatio = 1.3
	}
	if rules.AppendixBase <= 0 {
		rules.AppendixBase = 900
	}
	if rules.TableMarker == "" {
		rules.TableMarker = "tbl"
	}
	if rules.FigureMarker == "" {
		rules.FigureMarker = "fig"
	}
	return &Encoder{
		rules:    rules,
		blocks:   make(map[string]int),
		captions: make(map[string]int),
		seen:     make(map[string]bool),
	}
}

// Annotate assigns a path and heading flag to every node, preserving input
// order. It never fails: text that matches no numbering pattern falls through
// to the auto-block branch, so every node gets a path.
func (e *Encoder) Annotate(nodes []docmodel.RawNode) []docmodel.AnnotatedNode {
	avgHeight := averageHeight(nodes)

	out := make([]docmodel.AnnotatedNode, 0, len(nodes))
	for _, n := range nodes {
		path, structural := e.pathFor(n)
		path = e.ensureUnique(path)
		e.seen[path] = true

		out = append(out, docmodel.AnnotatedNode{
			RawNode:    n,
			Path:       path,
			ParentPath: e.ParentPath(path),
			IsHeading:  structural || e.headingCue(n, avgHeight),
		})
	}
	return out
}

// pathFor resolves one node to a path. The second return reports whether a
// structural numbering pattern matched (which also makes the node a heading).
func (e *Encoder) pathFor(n docmodel.RawNode) (string, bool) {
	text := strings.TrimSpace(n.Text)

	if n.Hint == docmodel.HintCaption {
		return e.captionPath(text), false
	}

	if text == "" || utf8.RuneCountInString(text) > e.rules.MaxHeadingLen || n.Hint == docmodel.HintTable {
		return e.autoBlockPath(), false
	}

	if m := decimalRe.FindStringSubmatch(text); m != nil {
		parts := strings.Split(m[1], ".")
		padded := make([]string, len(parts))
		for i, p := range parts {
			padded[i] = padOrdinal(atoiOr(p, 1))
		}
		e.stack = padded
		return strings.Join(padded, "."), true
	}

	if m := chapterRe.FindStringSubmatch(text); m != nil {
		return e.openLevel(1, numericOrdinal(m[2])), true
	}
	if m := sectionRe.FindStringSubmatch(text); m != nil {
		return e.openLevel(2, atoiOr(m[1], 1)), true
	}
	if m := articleRe.FindStringSubmatch(text); m != nil {
		return e.openLevel(3, atoiOr(m[2], 1)), true
	}

	if m := appendixRe.FindStringSubmatch(text); m != nil {
		return e.openLevel(1, e.rules.AppendixBase+letterOrdinal(m[2])), true
	}

	if m := captionRe.FindStringSubmatch(text); m != nil {
		marker := e.rules.FigureMarker
		if strings.HasPrefix(strings.ToLower(m[1]), "t") {
			marker = e.rules.TableMarker
		}
		return e.markerPath(marker, m[2]), false
	}

	if m := letterRe.FindStringSubmatch(text); m != nil {
		return e.openLevel(3, letterOrdinal(m[1])), true
	}

	return e.autoBlockPath(), false
}

// openLevel truncates the heading stack to depth-1, appends the ordinal, and
// returns the resulting path. Depths deeper than the current stack degrade to
// whatever ancestors are actually open.
func (e *Encoder) openLevel(depth, ordinal int) string {
	if depth-1 < len(e.stack) {
		e.stack = e.stack[:depth-1]
	}
	e.stack = append(e.stack, padOrdinal(ordinal))
	return strings.Join(e.stack, ".")
}

// autoBlockPath appends .blk.NNN under the nearest open ancestor, with a
// monotonically increasing per-parent counter.
func (e *Encoder) autoBlockPath() string {
	parent := strings.Join(e.stack, ".")
	e.blocks[parent]++
	if parent == "" {
		return fmt.Sprintf("blk.%03d", e.blocks[parent])
	}
	return fmt.Sprintf("%s.blk.%03d", parent, e.blocks[parent])
}

// markerPath places a table/figure caption under the current top-level
// ancestor with its marker and declared ordinal.
func (e *Encoder) markerPath(marker, suffix string) string {
	var sb strings.Builder
	if len(e.stack) > 0 {
		sb.WriteString(e.stack[0])
		sb.WriteString(".")
	}
	sb.WriteString(marker)
	for _, p := range strings.Split(suffix, ".") {
		sb.WriteString(".")
		sb.WriteString(padOrdinal(atoiOr(p, 1)))
	}
	return sb.String()
}

// captionPath handles caption-hinted nodes whose text carries no usable
// numbering: a per-parent counter under the figure marker.
func (e *Encoder) captionPath(text string) string {
	if m := captionRe.FindStringSubmatch(text); m != nil {
		marker := e.rules.FigureMarker
		if strings.HasPrefix(strings.ToLower(m[1]), "t") {
			marker = e.rules.TableMarker
		}
		return e.markerPath(marker, m[2])
	}
	parent := strings.Join(e.stack, ".")
	e.captions[parent]++
	if parent == "" {
		return fmt.Sprintf("%s.%03d", e.rules.FigureMarker, e.captions[parent])
	}
	return fmt.Sprintf("%s.%s.%03d", parent, e.rules.FigureMarker, e.captions[parent])
}

// ensureUnique guarantees the path-uniqueness invariant. A repeated explicit
// path (malformed numbering) demotes the node to an auto block under the
// colliding path.
func (e *Encoder) ensureUnique(path string) string {
	for e.seen[path] {
		e.blocks[path]++
		path = fmt.Sprintf("%s.blk.%03d", path, e.blocks[path])
	}
	return path
}

// ParentPath computes the structural parent of a path code. Marker and block
// components attach to their structural ancestor, not to each other.
func (e *Encoder) ParentPath(path string) string {
	if path == "" {
		return ""
	}
	for _, marker := range []string{".blk.", "." + e.rules.TableMarker + ".", "." + e.rules.FigureMarker + "."} {
		if i := strings.LastIndex(path, marker); i >= 0 {
			return path[:i]
		}
	}
	for _, prefix := range []string{"blk.", e.rules.TableMarker + ".", e.rules.FigureMarker + "."} {
		if strings.HasPrefix(path, prefix) {
			return ""
		}
	}
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// headingCue applies the short-line + height-jump lookahead signal.
func (e *Encoder) headingCue(n docmodel.RawNode, avgHeight float64) bool {
	text := strings.TrimSpace(n.Text)
	if text == "" || utf8.RuneCountInString(text) > e.rules.ShortLineLimit {
		return false
	}
	if avgHeight <= 0 || n.Height <= 0 {
		return false
	}
	return n.Height/avgHeight >= e.rules.HeightRatio
}

func averageHeight(nodes []docmodel.RawNode) float64 {
	var sum float64
	var count int
	for _, n := range nodes {
		if n.Height > 0 {
			sum += n.Height
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func padOrdinal(n int) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%03d", n)
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// numericOrdinal parses an arabic or roman chapter number.
func numericOrdinal(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if n := romanToInt(strings.ToLower(s)); n > 0 {
		return n
	}
	return 1
}

// letterOrdinal maps A..Z to 1..26; digits parse as-is.
func letterOrdinal(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	ls := strings.ToLower(s)
	if len(ls) == 1 && ls[0] >= 'a' && ls[0] <= 'z' {
		return int(ls[0]-'a') + 1
	}
	return 1
}
