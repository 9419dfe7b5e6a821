package docmodel

// ChunkType classifies a cleaned chunk. The set is closed; every consumer
// switches exhaustively over it.
type ChunkType string

const (
	ChunkHeading   ChunkType = "heading"
	ChunkParagraph ChunkType = "paragraph"
	ChunkListItem  ChunkType = "list_item"
	ChunkTable     ChunkType = "table"
)

// ChunkTypes lists all chunk types in a stable order.
var ChunkTypes = []ChunkType{ChunkHeading, ChunkParagraph, ChunkListItem, ChunkTable}

// PageRange is the first and last source page covered by a chunk or section.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Chunk is a semantically coherent span of one or more annotated nodes.
type Chunk struct {
	ID            int       `json:"id"` // document-scoped sequence number, 1-based
	Content       string    `json:"content"`
	Type          ChunkType `json:"type"`
	Path          string    `json:"path"`        // structural path of the first member node
	ParentPath    string    `json:"parent_path"` // structural ancestor of Path
	SourcePages   []int     `json:"source_pages"`
	PageRange     PageRange `json:"page_range"`
	BBoxRange     BBox      `json:"bbox_range"`
	ConfidenceAvg float64   `json:"confidence_avg"`
	NodeCount     int       `json:"node_count"`
}

// ChunkStats summarizes one document's cleaning pass. Always produced, even
// when every node was filtered out.
type ChunkStats struct {
	TotalPages     int               `json:"total_pages"`
	TotalNodes     int               `json:"total_nodes"`
	DroppedNodes   int               `json:"dropped_nodes"`
	TotalChunks    int               `json:"total_chunks"`
	ChunkTypes     map[ChunkType]int `json:"chunk_types"`
	AvgChunkLength float64           `json:"avg_chunk_length"`
}

// ChunkDocument is the persisted chunk-level record for one document,
// written for audit and consumed by the index writer.
type ChunkDocument struct {
	DocName string     `json:"doc_name"`
	DocID   string     `json:"doc_id"`
	Stats   ChunkStats `json:"stats"`
	Chunks  []Chunk    `json:"chunks"`
}
