// Package extractor converts raw document bytes into the layout-node stream
// the structure pipeline consumes. PDF pages carry real geometry (native
// text coordinates or OCR regions); the other formats synthesize a layout so
// the downstream height and gap heuristics fire uniformly.
package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// Stream is the extractor output for one document.
type Stream struct {
	Nodes     []docmodel.RawNode
	PageCount int
}

// Source converts one document into its node stream.
type Source interface {
	Extract(ctx context.Context, r io.Reader, filename string) (*Stream, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".txt":      true,
}

// Options carries the PDF-specific knobs; the other formats ignore them.
type Options struct {
	OCR            *Escalator // nil disables the OCR fallback
	MinNativeChars int        // below this, a PDF page goes to OCR
	Log            *slog.Logger
}

// ForFile returns the extractor for a filename.
func ForFile(filename string, opts Options) (Source, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFExtractor{ocr: opts.OCR, minNativeChars: opts.MinNativeChars, log: opts.Log}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".csv":
		return &CSVExtractor{}, nil
	case ".txt":
		return &TextExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
