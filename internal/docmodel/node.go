package docmodel

// BBox is an axis-aligned bounding box in page-local coordinates.
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 {
	return b.Bottom - b.Top
}

// Union returns the smallest box covering both b and other.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		Left:   min(b.Left, other.Left),
		Top:    min(b.Top, other.Top),
		Right:  max(b.Right, other.Right),
		Bottom: max(b.Bottom, other.Bottom),
	}
}

// UnionBBoxes folds a slice of boxes into their union. Returns the zero box
// for an empty slice.
func UnionBBoxes(boxes []BBox) BBox {
	if len(boxes) == 0 {
		return BBox{}
	}
	u := boxes[0]
	for _, b := range boxes[1:] {
		u = u.Union(b)
	}
	return u
}

// ContentHint is the extractor's guess at what a node contains.
type ContentHint string

const (
	HintText    ContentHint = "text"
	HintTable   ContentHint = "table"
	HintCaption ContentHint = "caption"
)

// RawNode is one structural primitive produced by the extraction layer.
// Native text carries Confidence 1.0; OCR output carries the engine's score.
// RawNodes are immutable once produced.
type RawNode struct {
	Page       int         `json:"page"` // 1-based
	BBox       BBox        `json:"bbox"`
	Text       string      `json:"text"`
	Height     float64     `json:"height"` // font/line height
	Confidence float64     `json:"confidence"`
	Hint       ContentHint `json:"content_type_hint"`
}

// AnnotatedNode is a RawNode plus the structural address assigned by the
// path encoder. Created once per RawNode and never mutated afterward.
type AnnotatedNode struct {
	RawNode
	Path       string `json:"path"`
	ParentPath string `json:"parent_path,omitempty"`
	IsHeading  bool   `json:"is_heading"`
}
