package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// PDFExtractor reads native text with its page coordinates. A page with too
// little native text is assumed scanned and goes to the OCR fallback. A
// failing page is skipped, logged, and does not abort the document.
type PDFExtractor struct {
	ocr            *Escalator
	minNativeChars int
	log            *slog.Logger
}

const (
	// DefaultMinNativeChars is the native-text floor below which a page is
	// treated as scanned.
	DefaultMinNativeChars = 50

	// Letter-size page height; used to flip PDF bottom-up coordinates into
	// the top-down space the rest of the pipeline uses.
	pdfPageHeight = 792.0

	lineYTolerance = 2.0
)

func (p *PDFExtractor) Extract(ctx context.Context, r io.Reader, filename string) (*Stream, error) {
	minChars := p.minNativeChars
	if minChars <= 0 {
		minChars = DefaultMinNativeChars
	}

	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docstruct-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var raw []byte
	if p.ocr != nil {
		raw, err = os.ReadFile(tmpPath)
		if err != nil {
			return nil, fmt.Errorf("read pdf for ocr: %w", err)
		}
	}

	stream := &Stream{PageCount: reader.NumPage()}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes, err := p.extractPage(ctx, reader, raw, filename, i, minChars)
		if err != nil {
			p.log.Warn("page extraction failed, skipping", "page", i, "error", err)
			continue
		}
		stream.Nodes = append(stream.Nodes, nodes...)
	}
	return stream, nil
}

func (p *PDFExtractor) extractPage(ctx context.Context, reader *pdflib.Reader, raw []byte, filename string, pageNum, minChars int) ([]docmodel.RawNode, error) {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page object missing")
	}

	nodes := nativePageNodes(page, pageNum)
	var total int
	for _, n := range nodes {
		total += len(n.Text)
	}
	if total >= minChars || p.ocr == nil {
		return nodes, nil
	}

	regions, err := p.ocr.Recognize(ctx, raw, filename, pageNum)
	if err != nil {
		return nil, fmt.Errorf("ocr page %d: %w", pageNum, err)
	}
	out := make([]docmodel.RawNode, 0, len(regions))
	for _, reg := range regions {
		text := strings.TrimSpace(reg.Text)
		if text == "" {
			continue
		}
		height := reg.Height
		if height == 0 {
			height = reg.BBox.Height()
		}
		out = append(out, docmodel.RawNode{
			Page:       pageNum,
			Text:       text,
			Height:     height,
			BBox:       reg.BBox,
			Confidence: reg.Confidence,
			Hint:       docmodel.HintText,
		})
	}
	return out, nil
}

// nativePageNodes groups the page's positioned text runs into lines. Native
// text always carries confidence 1.0.
func nativePageNodes(page pdflib.Page, pageNum int) []docmodel.RawNode {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	texts := make([]pdflib.Text, len(content.Text))
	copy(texts, content.Text)
	sort.SliceStable(texts, func(i, j int) bool {
		if math.Abs(texts[i].Y-texts[j].Y) > lineYTolerance {
			return texts[i].Y > texts[j].Y // higher Y first: top of page down
		}
		return texts[i].X < texts[j].X
	})

	var nodes []docmodel.RawNode
	var line []pdflib.Text
	flush := func() {
		if len(line) == 0 {
			return
		}
		var sb strings.Builder
		left, right := line[0].X, line[0].X+line[0].W
		var size, y float64
		for _, t := range line {
			sb.WriteString(t.S)
			left = math.Min(left, t.X)
			right = math.Max(right, t.X+t.W)
			size = math.Max(size, t.FontSize)
			y = t.Y
		}
		text := strings.TrimSpace(sb.String())
		if text != "" {
			top := pdfPageHeight - y - size
			nodes = append(nodes, docmodel.RawNode{
				Page:       pageNum,
				Text:       text,
				Height:     size,
				BBox:       docmodel.BBox{Left: left, Top: top, Right: right, Bottom: top + size},
				Confidence: 1.0,
				Hint:       docmodel.HintText,
			})
		}
		line = line[:0]
	}

	for _, t := range texts {
		if len(line) > 0 && math.Abs(t.Y-line[0].Y) > lineYTolerance {
			flush()
		}
		line = append(line, t)
	}
	flush()
	return nodes
}
