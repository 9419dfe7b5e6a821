package sectioner

import (
	"reflect"
	"testing"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

func chunk(id int, typ docmodel.ChunkType, content string, pages ...int) docmodel.Chunk {
	var pr docmodel.PageRange
	if len(pages) > 0 {
		pr = docmodel.PageRange{First: pages[0], Last: pages[len(pages)-1]}
	}
	return docmodel.Chunk{
		ID:          id,
		Type:        typ,
		Content:     content,
		SourcePages: pages,
		PageRange:   pr,
		NodeCount:   1,
	}
}

func TestAggregate_HeadingAnchoredGrouping(t *testing.T) {
	chunks := []docmodel.Chunk{
		chunk(1, docmodel.ChunkHeading, "1. Overview", 1),
		chunk(2, docmodel.ChunkParagraph, "General rules of play.", 1),
		chunk(3, docmodel.ChunkListItem, "robots must be inspected", 2),
		chunk(4, docmodel.ChunkHeading, "2. Penalties", 2),
		chunk(5, docmodel.ChunkParagraph, "Violations cost points.", 2),
	}

	sections, stats := Aggregate(chunks)

	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].Heading != "1. Overview" || sections[0].HeadingChunkID != 1 {
		t.Errorf("section 1 heading: %+v", sections[0])
	}
	if !reflect.DeepEqual(sections[0].ContentChunkIDs, []int{2, 3}) {
		t.Errorf("section 1 content ids: %v", sections[0].ContentChunkIDs)
	}
	if sections[0].ChunkCount != 2 {
		t.Errorf("section 1 chunk_count = %d", sections[0].ChunkCount)
	}
	if sections[0].ChunkTypeCounts[docmodel.ChunkParagraph] != 1 || sections[0].ChunkTypeCounts[docmodel.ChunkListItem] != 1 {
		t.Errorf("section 1 type counts: %v", sections[0].ChunkTypeCounts)
	}
	if stats.TotalSections != 2 || stats.TotalChunks != 5 {
		t.Errorf("stats: %+v", stats)
	}
	if stats.AvgChunksPerSection != 2.5 {
		t.Errorf("avg_chunks_per_section = %v", stats.AvgChunksPerSection)
	}
}

func TestAggregate_ImplicitLeadingSection(t *testing.T) {
	chunks := []docmodel.Chunk{
		chunk(1, docmodel.ChunkParagraph, "Preamble before the first heading.", 1),
		chunk(2, docmodel.ChunkHeading, "1. Scope", 1),
		chunk(3, docmodel.ChunkParagraph, "Body of section one.", 1),
	}

	sections, _ := Aggregate(chunks)

	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	lead := sections[0]
	if lead.Heading != "" || lead.HeadingChunkID != 0 {
		t.Errorf("leading section should be unlabeled: %+v", lead)
	}
	if !reflect.DeepEqual(lead.ContentChunkIDs, []int{1}) {
		t.Errorf("leading section content ids: %v", lead.ContentChunkIDs)
	}
}

func TestAggregate_PartitionProperty(t *testing.T) {
	chunks := []docmodel.Chunk{
		chunk(1, docmodel.ChunkParagraph, "preamble", 1),
		chunk(2, docmodel.ChunkHeading, "A", 1),
		chunk(3, docmodel.ChunkParagraph, "a body", 1),
		chunk(4, docmodel.ChunkTable, "col | col", 2),
		chunk(5, docmodel.ChunkHeading, "B", 2),
		chunk(6, docmodel.ChunkHeading, "C", 3),
		chunk(7, docmodel.ChunkListItem, "item", 3),
	}

	sections, _ := Aggregate(chunks)

	// Reassembling heading + content ids in order must reproduce the chunk
	// sequence exactly once each.
	var got []int
	for _, s := range sections {
		if s.HeadingChunkID != 0 {
			got = append(got, s.HeadingChunkID)
		}
		got = append(got, s.ContentChunkIDs...)
	}
	want := []int{1, 2, 3, 4, 5, 6, 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("partition broken: got %v, want %v", got, want)
	}
}

func TestAggregate_ContentRendering(t *testing.T) {
	chunks := []docmodel.Chunk{
		chunk(1, docmodel.ChunkHeading, "3. Safety", 4),
		chunk(2, docmodel.ChunkParagraph, "Wear eye protection.", 4),
		chunk(3, docmodel.ChunkListItem, "no exposed blades", 5),
	}

	sections, _ := Aggregate(chunks)

	want := "## 3. Safety\n\nWear eye protection.\n\n- no exposed blades"
	if sections[0].Content != want {
		t.Errorf("content:\n%q\nwant:\n%q", sections[0].Content, want)
	}
	if sections[0].PageRange.First != 4 || sections[0].PageRange.Last != 5 {
		t.Errorf("page_range: %+v", sections[0].PageRange)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	sections, stats := Aggregate(nil)
	if len(sections) != 0 {
		t.Fatalf("expected no sections, got %d", len(sections))
	}
	if stats.TotalSections != 0 || stats.AvgChunksPerSection != 0 {
		t.Errorf("stats: %+v", stats)
	}
}
