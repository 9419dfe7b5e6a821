package docmodel

// Section aggregates one heading chunk and the contiguous run of non-heading
// chunks that follow it. Sections partition the chunk sequence exactly.
type Section struct {
	ID              int               `json:"id"` // document-scoped sequence number, 1-based
	Heading         string            `json:"heading"`
	Content         string            `json:"content"`
	Path            string            `json:"path"` // structural path of the heading chunk
	SourcePages     []int             `json:"source_pages"`
	PageRange       PageRange         `json:"page_range"`
	ChunkCount      int               `json:"chunk_count"`
	ChunkTypeCounts map[ChunkType]int `json:"chunk_types"`
	HeadingChunkID  int               `json:"heading_chunk_id"` // 0 for the implicit leading section
	ContentChunkIDs []int             `json:"content_chunk_ids"`
}

// SectionStats summarizes one document's aggregation pass.
type SectionStats struct {
	TotalSections       int     `json:"total_sections"`
	TotalChunks         int     `json:"total_chunks"`
	AvgChunksPerSection float64 `json:"avg_chunks_per_section"`
}

// SectionDocument is the persisted section-level record for one document.
type SectionDocument struct {
	DocName  string       `json:"doc_name"`
	DocID    string       `json:"doc_id"`
	Stats    SectionStats `json:"stats"`
	Sections []Section    `json:"sections"`
}
