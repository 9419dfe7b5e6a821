package indexer

import (
	"fmt"
	"time"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// ChunkRecord is the chunk-level projection written to the search engine.
// GlobalID is the upsert key, so re-submitting an unchanged document
// overwrites identical records instead of duplicating them.
type ChunkRecord struct {
	GlobalID      string             `json:"global_id"`
	DocID         string             `json:"doc_id"`
	DocName       string             `json:"doc_name"`
	ChunkID       int                `json:"chunk_id"`
	Path          string             `json:"path"`
	ParentPath    string             `json:"parent_path"`
	Content       string             `json:"content"`
	Type          docmodel.ChunkType `json:"type"`
	SourcePages   []int              `json:"source_pages"`
	PageRange     docmodel.PageRange `json:"page_range"`
	BBoxRange     docmodel.BBox      `json:"bbox_range"`
	ConfidenceAvg float64            `json:"confidence_avg"`
	NodeCount     int                `json:"node_count"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SectionRecord is the section-level projection.
type SectionRecord struct {
	GlobalID        string                     `json:"global_id"`
	DocID           string                     `json:"doc_id"`
	DocName         string                     `json:"doc_name"`
	SectionID       int                        `json:"section_id"`
	Path            string                     `json:"path"`
	Heading         string                     `json:"heading"`
	Content         string                     `json:"content"`
	SourcePages     []int                      `json:"source_pages"`
	PageRange       docmodel.PageRange         `json:"page_range"`
	ChunkCount      int                        `json:"chunk_count"`
	ChunkTypes      map[docmodel.ChunkType]int `json:"chunk_types"`
	HeadingChunkID  int                        `json:"heading_chunk_id"`
	ContentChunkIDs []int                      `json:"content_chunk_ids"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// chunkKeyPath is the path component of a chunk's global id. Falls back to
// a synthesized sequence key for chunks without a structural path.
func chunkKeyPath(ch docmodel.Chunk) string {
	if ch.Path != "" {
		return ch.Path
	}
	return fmt.Sprintf("chunk.%03d", ch.ID)
}

func sectionKeyPath(sec docmodel.Section) string {
	if sec.Path != "" {
		return sec.Path
	}
	return fmt.Sprintf("section.%03d", sec.ID)
}

// MapChunk projects one chunk into its index record.
func MapChunk(docID, docName string, ch docmodel.Chunk, now time.Time) ChunkRecord {
	return ChunkRecord{
		GlobalID:      docmodel.GlobalID(docID, chunkKeyPath(ch)),
		DocID:         docID,
		DocName:       docName,
		ChunkID:       ch.ID,
		Path:          ch.Path,
		ParentPath:    ch.ParentPath,
		Content:       ch.Content,
		Type:          ch.Type,
		SourcePages:   ch.SourcePages,
		PageRange:     ch.PageRange,
		BBoxRange:     ch.BBoxRange,
		ConfidenceAvg: ch.ConfidenceAvg,
		NodeCount:     ch.NodeCount,
		CreatedAt:     now,
	}
}

// MapSection projects one section into its index record.
func MapSection(docID, docName string, sec docmodel.Section, now time.Time) SectionRecord {
	return SectionRecord{
		GlobalID:        docmodel.GlobalID(docID, sectionKeyPath(sec)),
		DocID:           docID,
		DocName:         docName,
		SectionID:       sec.ID,
		Path:            sec.Path,
		Heading:         sec.Heading,
		Content:         sec.Content,
		SourcePages:     sec.SourcePages,
		PageRange:       sec.PageRange,
		ChunkCount:      sec.ChunkCount,
		ChunkTypes:      sec.ChunkTypeCounts,
		HeadingChunkID:  sec.HeadingChunkID,
		ContentChunkIDs: sec.ContentChunkIDs,
		CreatedAt:       now,
	}
}
