package cleaner

import "fmt"

// BoundaryKind identifies which strong signal forced a chunk boundary.
type BoundaryKind string

const (
	BoundaryPathChange     BoundaryKind = "path_change"
	BoundaryHeading        BoundaryKind = "heading"
	BoundaryListStart      BoundaryKind = "list_start"
	BoundaryLargeGap       BoundaryKind = "large_gap"
	BoundaryHeightJump     BoundaryKind = "height_jump"
	BoundaryMaxLength      BoundaryKind = "max_length"
	BoundaryMinLengthFlush BoundaryKind = "min_length_flush"
)

// BoundaryReason records why a boundary was cut, with enough detail for
// post-hoc verification of the cleaning statistics.
type BoundaryReason struct {
	Kind   BoundaryKind `json:"kind"`
	Detail string       `json:"detail,omitempty"`
}

func (r BoundaryReason) String() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Detail)
}

// DropReason classifies why a node was filtered out before merging.
type DropReason string

const (
	DropLowConfidence DropReason = "low_confidence"
	DropFooterHeader  DropReason = "footer_header"
)

// DropEvent is one audit record for a filtered node.
type DropEvent struct {
	Page    int        `json:"page"`
	Reason  DropReason `json:"reason"`
	Preview string     `json:"preview"`
}

// CutEvent is one audit record for a forced chunk boundary.
type CutEvent struct {
	ChunkID int            `json:"chunk_id"`
	Reason  BoundaryReason `json:"reason"`
}
