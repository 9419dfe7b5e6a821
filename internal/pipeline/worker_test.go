package pipeline

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/docstruct/internal/audit"
	"github.com/dgallion1/docstruct/internal/cleaner"
	"github.com/dgallion1/docstruct/internal/extractor"
	"github.com/dgallion1/docstruct/internal/indexer"
	"github.com/dgallion1/docstruct/internal/searchstore"
)

type memoryIndexStore struct {
	byIndex map[string][]searchstore.BulkDoc

	// stallIndex, when set, blocks bulk writes to that index until the
	// caller's deadline fires.
	stallIndex string
}

func (m *memoryIndexStore) ChunksIndex() string   { return "test_chunks" }
func (m *memoryIndexStore) SectionsIndex() string { return "test_sections" }

func (m *memoryIndexStore) BulkUpsert(ctx context.Context, index string, docs []searchstore.BulkDoc) (*searchstore.BulkResult, error) {
	if index == m.stallIndex {
		<-ctx.Done()
		return nil, &searchstore.RetryableError{Op: "bulk upsert", Err: ctx.Err()}
	}
	if m.byIndex == nil {
		m.byIndex = make(map[string][]searchstore.BulkDoc)
	}
	m.byIndex[index] = append(m.byIndex[index], docs...)
	return &searchstore.BulkResult{Succeeded: len(docs)}, nil
}

func (m *memoryIndexStore) UpsertOne(_ context.Context, index, id string, body any) error {
	return nil
}

func newTestWorker(t *testing.T, store *memoryIndexStore, cfg indexer.Config) (*Worker, *audit.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	auditStore := audit.NewStore(db, log)
	if err := auditStore.Init(); err != nil {
		t.Fatalf("init audit store: %v", err)
	}

	records, err := audit.NewRecordWriter(t.TempDir())
	if err != nil {
		t.Fatalf("record writer: %v", err)
	}

	writer := indexer.New(store, cfg, log)

	w := NewWorker(extractor.Options{Log: log}, cleaner.DefaultConfig(), writer, auditStore, records, log)
	return w, auditStore
}

func TestWorker_ProcessTextDocumentEndToEnd(t *testing.T) {
	store := &memoryIndexStore{}
	w, auditStore := newTestWorker(t, store, indexer.DefaultConfig())

	content := "1. Overview\n\nGeneral rules of play for the robot league.\n\n2. Penalties\n\nViolations cost five points each occurrence.\n"
	job := NewJob("rulebook_v2.1.0.txt", []byte(content))

	w.Process(context.Background(), job)

	if job.Status != StatusCompleted {
		t.Fatalf("status = %q, errors: %v", job.Status, job.Snapshot().Progress.Errors)
	}

	snap := job.Snapshot()
	if snap.Progress.TotalChunks != 4 {
		t.Errorf("total_chunks = %d, want 4", snap.Progress.TotalChunks)
	}
	if snap.Progress.TotalSections != 2 {
		t.Errorf("total_sections = %d, want 2", snap.Progress.TotalSections)
	}
	if snap.Progress.RecordsIndexed != 6 {
		t.Errorf("records_indexed = %d, want 6", snap.Progress.RecordsIndexed)
	}
	if snap.Progress.WriteFailures != 0 {
		t.Errorf("write_failures = %d", snap.Progress.WriteFailures)
	}

	if got := len(store.byIndex["test_chunks"]); got != 4 {
		t.Errorf("chunk records = %d, want 4", got)
	}
	if got := len(store.byIndex["test_sections"]); got != 2 {
		t.Errorf("section records = %d, want 2", got)
	}

	// The audit trail carries the per-document report.
	auditStore.Close()
	reports, err := auditStore.Reports(context.Background(), 10)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Status != "success" {
		t.Fatalf("reports: %+v", reports)
	}
	if reports[0].DocID != job.DocID {
		t.Errorf("report doc_id = %q, want %q", reports[0].DocID, job.DocID)
	}
}

func TestWorker_UnsupportedFormatFails(t *testing.T) {
	w, _ := newTestWorker(t, &memoryIndexStore{}, indexer.DefaultConfig())

	job := NewJob("image.png", []byte{0x89, 0x50})
	w.Process(context.Background(), job)

	if job.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if len(job.Snapshot().Progress.Errors) == 0 {
		t.Error("expected an error recorded")
	}
}

func TestWorker_EmptyDocumentStillSucceeds(t *testing.T) {
	store := &memoryIndexStore{}
	w, _ := newTestWorker(t, store, indexer.DefaultConfig())

	job := NewJob("empty_v1.0.0.txt", []byte("   \n\n  \n"))
	w.Process(context.Background(), job)

	if job.Status != StatusCompleted {
		t.Fatalf("status = %q", job.Status)
	}
	snap := job.Snapshot()
	if snap.Progress.TotalChunks != 0 || snap.Progress.RecordsIndexed != 0 {
		t.Errorf("progress: %+v", snap.Progress)
	}
	if len(store.byIndex) != 0 {
		t.Errorf("no records should be written: %v", store.byIndex)
	}
}

func TestWorker_WriteDeadlineYieldsPartial(t *testing.T) {
	store := &memoryIndexStore{stallIndex: "test_sections"}
	cfg := indexer.DefaultConfig()
	cfg.MaxRetries = 1
	cfg.WriteDeadline = 50 * time.Millisecond
	w, auditStore := newTestWorker(t, store, cfg)

	content := "1. Overview\n\nGeneral rules of play.\n\n2. Penalties\n\nViolations cost points.\n"
	job := NewJob("rulebook_v1.0.0.txt", []byte(content))

	w.Process(context.Background(), job)

	// Chunks land before the deadline; the stalled section batch must not
	// fail the whole document.
	if job.Status != StatusPartial {
		t.Fatalf("status = %q, want partial", job.Status)
	}
	snap := job.Snapshot()
	if snap.Progress.RecordsIndexed != 4 {
		t.Errorf("records_indexed = %d, want 4", snap.Progress.RecordsIndexed)
	}
	if snap.Progress.WriteFailures != 2 {
		t.Errorf("write_failures = %d, want 2", snap.Progress.WriteFailures)
	}
	if got := len(store.byIndex["test_chunks"]); got != 4 {
		t.Errorf("chunk records = %d, want 4", got)
	}

	auditStore.Close()
	reports, err := auditStore.Reports(context.Background(), 10)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Status != "partial" {
		t.Fatalf("reports: %+v", reports)
	}
	if reports[0].TotalChunks != 4 || reports[0].WriteFailures != 2 {
		t.Errorf("report counts: %+v", reports[0])
	}
}
