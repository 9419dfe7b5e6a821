// Package cleaner turns the annotated node stream of one document into an
// ordered chunk sequence. The policy is two-pass: filter noise, then merge
// greedily and cut on strong signals. A Cleaner carries per-document state
// (the footer signature cache) and must not be shared across documents.
package cleaner

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Config holds the cleaning thresholds.
type Config struct {
	ConfidenceThreshold  float64 // drop nodes below this OCR confidence
	ShortLineThreshold   int     // character ceiling used as a heading cue
	HeightRatioThreshold float64 // line-height jump multiplier forcing a boundary
	MinGapThreshold      float64 // vertical gap forcing a boundary, page units
	MaxChunkLength       int     // accumulated length forcing a boundary
	MinChunkLength       int     // below this, an imminent heading flushes the fragment
}

// DefaultConfig returns the thresholds tuned for scanned rulebooks.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  0.1,
		ShortLineThreshold:   20,
		HeightRatioThreshold: 1.3,
		MinGapThreshold:      15.0,
		MaxChunkLength:       2000,
		MinChunkLength:       15,
	}
}

// Validate rejects out-of-range thresholds. Called at pipeline start so a
// bad configuration fails before any document is processed.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %v outside [0,1]", c.ConfidenceThreshold)
	}
	if c.ShortLineThreshold <= 0 {
		return fmt.Errorf("short line threshold %d must be positive", c.ShortLineThreshold)
	}
	if c.HeightRatioThreshold < 1 {
		return fmt.Errorf("height ratio threshold %v must be at least 1", c.HeightRatioThreshold)
	}
	if c.MinGapThreshold < 0 {
		return fmt.Errorf("min gap threshold %v must not be negative", c.MinGapThreshold)
	}
	if c.MinChunkLength < 0 {
		return fmt.Errorf("min chunk length %d must not be negative", c.MinChunkLength)
	}
	if c.MaxChunkLength <= c.MinChunkLength {
		return fmt.Errorf("max chunk length %d must exceed min chunk length %d", c.MaxChunkLength, c.MinChunkLength)
	}
	return nil
}

var listPrefixRes = []*regexp.Regexp{
	regexp.MustCompile(`^[•·*\-–]\s`),
	regexp.MustCompile(`^\d+[.)、]\s`),
	regexp.MustCompile(`^[a-zA-Z][.)]\s`),
	regexp.MustCompile(`^\([a-zA-Z0-9]+\)\s`),
}

var spaceRe = regexp.MustCompile(`\s+`)

// Result is the output of one cleaning pass. Stats are always populated,
// even when every node was filtered out.
type Result struct {
	Chunks []docmodel.Chunk
	Stats  docmodel.ChunkStats
	Drops  []DropEvent
	Cuts   []CutEvent
}

// Cleaner filters and chunks one document's node stream.
type Cleaner struct {
	cfg  Config
	log  *slog.Logger
	sigs *SignatureCache
}

// New creates a cleaner for a single document.
func New(cfg Config, log *slog.Logger) *Cleaner {
	return &Cleaner{cfg: cfg, log: log, sigs: NewSignatureCache()}
}

// Clean runs both passes and returns the chunk sequence with stats and the
// audit trail of every drop and cut decision.
func (c *Cleaner) Clean(nodes []docmodel.AnnotatedNode, totalPages int) Result {
	res := Result{
		Stats: docmodel.ChunkStats{
			TotalPages: totalPages,
			TotalNodes: len(nodes),
			ChunkTypes: emptyTypeCounts(),
		},
	}

	// Pass 1: filter. The signature cache is rebuilt from the full stream
	// before the first lookup.
	raw := make([]docmodel.RawNode, len(nodes))
	for i, n := range nodes {
		raw[i] = n.RawNode
	}
	c.sigs.Rebuild(raw)

	kept := make([]docmodel.AnnotatedNode, 0, len(nodes))
	for _, n := range nodes {
		if n.Confidence < c.cfg.ConfidenceThreshold {
			res.Drops = append(res.Drops, c.drop(n, DropLowConfidence))
			continue
		}
		if c.sigs.IsNoise(n.Text) {
			res.Drops = append(res.Drops, c.drop(n, DropFooterHeader))
			continue
		}
		kept = append(kept, n)
	}
	res.Stats.DroppedNodes = len(res.Drops)

	// Pass 2: greedy merge, cut on strong signals.
	var pending []docmodel.AnnotatedNode
	var pendingLen int
	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunk := c.mergeChunk(pending, len(res.Chunks)+1)
		res.Chunks = append(res.Chunks, chunk)
		pending = pending[:0]
		pendingLen = 0
	}

	for i, n := range kept {
		if len(pending) > 0 {
			var next *docmodel.AnnotatedNode
			if i+1 < len(kept) {
				next = &kept[i+1]
			}
			if reason, cut := c.shouldCut(pending, pendingLen, n, next); cut {
				res.Cuts = append(res.Cuts, CutEvent{ChunkID: len(res.Chunks) + 1, Reason: reason})
				c.log.Debug("chunk boundary", "reason", reason.String(), "page", n.Page)
				flush()
			}
		}
		pending = append(pending, n)
		pendingLen += utf8.RuneCountInString(n.Text)
	}
	flush()

	res.Stats.TotalChunks = len(res.Chunks)
	var totalLen int
	for _, ch := range res.Chunks {
		res.Stats.ChunkTypes[ch.Type]++
		totalLen += utf8.RuneCountInString(ch.Content)
	}
	if len(res.Chunks) > 0 {
		res.Stats.AvgChunkLength = float64(totalLen) / float64(len(res.Chunks))
	}
	return res
}

func (c *Cleaner) drop(n docmodel.AnnotatedNode, reason DropReason) DropEvent {
	ev := DropEvent{Page: n.Page, Reason: reason, Preview: preview(n.Text, 50)}
	c.log.Debug("dropped node", "reason", string(reason), "page", n.Page, "preview", ev.Preview)
	return ev
}

// shouldCut evaluates the ordered boundary predicates, short-circuiting on
// the first that fires.
func (c *Cleaner) shouldCut(pending []docmodel.AnnotatedNode, pendingLen int, n docmodel.AnnotatedNode, next *docmodel.AnnotatedNode) (BoundaryReason, bool) {
	last := pending[len(pending)-1]

	if s, ps := mergeScope(n), mergeScope(pending[0]); s != ps {
		return BoundaryReason{Kind: BoundaryPathChange, Detail: fmt.Sprintf("%s -> %s", ps, s)}, true
	}
	if pendingLen < c.cfg.MinChunkLength && headingImminent(n, next) {
		return BoundaryReason{Kind: BoundaryMinLengthFlush, Detail: fmt.Sprintf("len=%d", pendingLen)}, true
	}
	if n.IsHeading {
		return BoundaryReason{Kind: BoundaryHeading}, true
	}
	if isListItem(n.Text) && chunkTypeOf(pending[0]) != docmodel.ChunkListItem {
		return BoundaryReason{Kind: BoundaryListStart}, true
	}
	if n.Page == last.Page {
		if gap := n.BBox.Top - last.BBox.Bottom; gap > c.cfg.MinGapThreshold {
			return BoundaryReason{Kind: BoundaryLargeGap, Detail: fmt.Sprintf("gap=%.1f", gap)}, true
		}
	}
	if last.Height > 0 && n.Height > 0 {
		ratio := math.Max(n.Height/last.Height, last.Height/n.Height)
		if ratio > c.cfg.HeightRatioThreshold {
			return BoundaryReason{Kind: BoundaryHeightJump, Detail: fmt.Sprintf("ratio=%.2f", ratio)}, true
		}
	}
	if pendingLen+utf8.RuneCountInString(n.Text) > c.cfg.MaxChunkLength {
		return BoundaryReason{Kind: BoundaryMaxLength, Detail: fmt.Sprintf("len=%d", pendingLen)}, true
	}
	return BoundaryReason{}, false
}

// headingImminent reports whether the incoming node or the one after it
// carries the heading flag, so tiny fragments are closed before the heading
// rather than floating into it.
func headingImminent(n docmodel.AnnotatedNode, next *docmodel.AnnotatedNode) bool {
	if n.IsHeading {
		return true
	}
	return next != nil && next.IsHeading
}

// mergeScope is the structural path nodes must share to merge freely: auto
// blocks merge within their parent, everything else within its own path.
func mergeScope(n docmodel.AnnotatedNode) string {
	if strings.Contains(n.Path, "blk.") {
		return n.ParentPath
	}
	return n.Path
}

// mergeChunk finalizes a run of nodes into one chunk with derived provenance.
func (c *Cleaner) mergeChunk(nodes []docmodel.AnnotatedNode, id int) docmodel.Chunk {
	parts := make([]string, 0, len(nodes))
	boxes := make([]docmodel.BBox, 0, len(nodes))
	pageSet := make(map[int]bool)
	var confSum float64

	for _, n := range nodes {
		if t := strings.TrimSpace(n.Text); t != "" {
			parts = append(parts, spaceRe.ReplaceAllString(t, " "))
		}
		boxes = append(boxes, n.BBox)
		pageSet[n.Page] = true
		confSum += n.Confidence
	}

	pages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var pr docmodel.PageRange
	if len(pages) > 0 {
		pr = docmodel.PageRange{First: pages[0], Last: pages[len(pages)-1]}
	}

	return docmodel.Chunk{
		ID:            id,
		Content:       strings.Join(parts, " "),
		Type:          chunkTypeOf(nodes[0]),
		Path:          nodes[0].Path,
		ParentPath:    nodes[0].ParentPath,
		SourcePages:   pages,
		PageRange:     pr,
		BBoxRange:     docmodel.UnionBBoxes(boxes),
		ConfidenceAvg: confSum / float64(len(nodes)),
		NodeCount:     len(nodes),
	}
}

// chunkTypeOf classifies a chunk by its first node.
func chunkTypeOf(n docmodel.AnnotatedNode) docmodel.ChunkType {
	switch n.Hint {
	case docmodel.HintTable:
		return docmodel.ChunkTable
	case docmodel.HintCaption:
		return docmodel.ChunkParagraph
	case docmodel.HintText:
		// fall through to text heuristics
	}
	if n.IsHeading {
		return docmodel.ChunkHeading
	}
	if isListItem(n.Text) {
		return docmodel.ChunkListItem
	}
	return docmodel.ChunkParagraph
}

func isListItem(text string) bool {
	text = strings.TrimSpace(text)
	for _, re := range listPrefixRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func emptyTypeCounts() map[docmodel.ChunkType]int {
	m := make(map[docmodel.ChunkType]int, len(docmodel.ChunkTypes))
	for _, t := range docmodel.ChunkTypes {
		m[t] = 0
	}
	return m
}

func preview(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
