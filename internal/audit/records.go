package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

// RecordWriter persists the full chunk and section documents as JSON files.
// These records are the source for the offline reindex path.
type RecordWriter struct {
	dir string
}

func NewRecordWriter(dir string) (*RecordWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &RecordWriter{dir: dir}, nil
}

// Write persists both granularities for one document, overwriting any
// previous run.
func (w *RecordWriter) Write(chunks docmodel.ChunkDocument, sections docmodel.SectionDocument) error {
	if err := w.writeJSON(chunks.DocID+".chunks.json", chunks); err != nil {
		return err
	}
	return w.writeJSON(sections.DocID+".sections.json", sections)
}

func (w *RecordWriter) writeJSON(name string, v any) error {
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create record file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode record %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close record file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename record file: %w", err)
	}
	return nil
}

// Load reads back both granularities for one document.
func (w *RecordWriter) Load(docID string) (docmodel.ChunkDocument, docmodel.SectionDocument, error) {
	var chunks docmodel.ChunkDocument
	var sections docmodel.SectionDocument
	if err := w.readJSON(docID+".chunks.json", &chunks); err != nil {
		return chunks, sections, err
	}
	if err := w.readJSON(docID+".sections.json", &sections); err != nil {
		return chunks, sections, err
	}
	return chunks, sections, nil
}

func (w *RecordWriter) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		return fmt.Errorf("read record %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode record %s: %w", name, err)
	}
	return nil
}

// DocIDs lists every document with persisted records.
func (w *RecordWriter) DocIDs() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read record dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".chunks.json"); ok {
			ids = append(ids, name)
		}
	}
	return ids, nil
}
