// Package sectioner groups the ordered chunk sequence of one document into
// sections anchored at heading chunks. Sections partition the chunk sequence
// exactly: every chunk belongs to one section, none is duplicated or lost.
package sectioner

import (
	"sort"
	"strings"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Aggregate opens a new section at every heading chunk and attaches the
// following non-heading chunks to it. A document whose first chunk is not a
// heading gets an implicit unlabeled leading section so no content is lost.
func Aggregate(chunks []docmodel.Chunk) ([]docmodel.Section, docmodel.SectionStats) {
	var sections []docmodel.Section
	var open *builder

	flush := func() {
		if open != nil {
			sections = append(sections, open.finalize(len(sections)+1))
			open = nil
		}
	}

	for _, ch := range chunks {
		ch := ch
		switch ch.Type {
		case docmodel.ChunkHeading:
			flush()
			open = &builder{heading: &ch}
		case docmodel.ChunkParagraph, docmodel.ChunkListItem, docmodel.ChunkTable:
			if open == nil {
				open = &builder{} // implicit leading section
			}
			open.content = append(open.content, ch)
		}
	}
	flush()

	stats := docmodel.SectionStats{
		TotalSections: len(sections),
		TotalChunks:   len(chunks),
	}
	if len(sections) > 0 {
		stats.AvgChunksPerSection = float64(len(chunks)) / float64(len(sections))
	}
	return sections, stats
}

type builder struct {
	heading *docmodel.Chunk
	content []docmodel.Chunk
}

func (b *builder) finalize(id int) docmodel.Section {
	sec := docmodel.Section{
		ID:              id,
		ChunkCount:      len(b.content),
		ChunkTypeCounts: make(map[docmodel.ChunkType]int),
		ContentChunkIDs: make([]int, 0, len(b.content)),
	}

	var parts []string
	pageSet := make(map[int]bool)

	if b.heading != nil {
		sec.Heading = b.heading.Content
		sec.Path = b.heading.Path
		sec.HeadingChunkID = b.heading.ID
		parts = append(parts, "## "+b.heading.Content)
		for _, p := range b.heading.SourcePages {
			pageSet[p] = true
		}
	}

	for _, ch := range b.content {
		sec.ChunkTypeCounts[ch.Type]++
		sec.ContentChunkIDs = append(sec.ContentChunkIDs, ch.ID)
		text := strings.TrimSpace(ch.Content)
		if ch.Type == docmodel.ChunkListItem {
			text = "- " + text
		}
		parts = append(parts, text)
		for _, p := range ch.SourcePages {
			pageSet[p] = true
		}
	}

	sec.Content = strings.Join(parts, "\n\n")

	pages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	sec.SourcePages = pages
	if len(pages) > 0 {
		sec.PageRange = docmodel.PageRange{First: pages[0], Last: pages[len(pages)-1]}
	}
	return sec
}
