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
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/indexer"
)

func newTestOrchestrator(t *testing.T, store *memoryIndexStore) *Orchestrator {
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

	cfg := config.Config{
		WorkerCount:  2,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
		Cleaning:     cleaner.DefaultConfig(),
		Indexing:     indexer.DefaultConfig(),
	}
	writer := indexer.New(store, cfg.Indexing, log)
	return NewOrchestrator(cfg, writer, auditStore, records, log)
}

func TestOrchestrator_ProcessesSubmittedJob(t *testing.T) {
	store := &memoryIndexStore{}
	orch := newTestOrchestrator(t, store)

	orch.Start(context.Background())
	defer orch.Stop()

	job := NewJob("rules_v1.0.0.txt", []byte("1. Scope\n\nAll robots must register."))
	if err := orch.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got := orch.GetJob(job.ID)
		if got == nil {
			t.Fatal("job disappeared from store")
		}
		snap := got.Snapshot()
		if snap.Status == StatusCompleted {
			break
		}
		if snap.Status == StatusFailed || snap.Status == StatusPartial {
			t.Fatalf("job ended %q: %v", snap.Status, snap.Progress.Errors)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %q", snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrchestrator_SubmitAfterStopRejected(t *testing.T) {
	orch := newTestOrchestrator(t, &memoryIndexStore{})

	orch.Start(context.Background())
	orch.Stop()

	// Must refuse cleanly, not panic on a drained pool.
	job := NewJob("late.txt", []byte("too late"))
	if err := orch.Submit(job); err == nil {
		t.Fatal("expected an error submitting after Stop")
	}
	if job.Status != StatusFailed {
		t.Errorf("status = %q, want failed", job.Status)
	}
}

func TestOrchestrator_QueueFullRejected(t *testing.T) {
	orch := newTestOrchestrator(t, &memoryIndexStore{})
	// Workers never started: the queue only fills.

	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = orch.Submit(NewJob("doc.txt", []byte("x")))
	}
	if lastErr == nil {
		t.Fatal("expected queue-full rejection")
	}
	if orch.QueueDepth() != 4 {
		t.Errorf("queue depth = %d, want 4", orch.QueueDepth())
	}
}
