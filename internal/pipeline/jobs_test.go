package pipeline

import (
	"testing"
	"time"
)

func TestNewJob_Identity(t *testing.T) {
	job := NewJob("Robot League Rulebook V2.1.0.pdf", []byte("%PDF"))

	if job.ID == "" {
		t.Error("expected a job id")
	}
	if job.Version != "v2.1.0" {
		t.Errorf("version = %q", job.Version)
	}
	if job.DocID != "Robot_League_Rulebook_V2.1.0_v2.1.0" {
		t.Errorf("doc_id = %q", job.DocID)
	}
	if job.Status != StatusQueued {
		t.Errorf("status = %q", job.Status)
	}
}

func TestDocIdentity_NoVersionToken(t *testing.T) {
	name, version, docID := DocIdentity("/data/inbox/safety manual.pdf")
	if version != "v1.0.0" {
		t.Errorf("version = %q", version)
	}
	if name != "safety_manual" {
		t.Errorf("name = %q", name)
	}
	if docID != "safety_manual_v1.0.0" {
		t.Errorf("doc_id = %q", docID)
	}
}

func TestDocIdentity_Deterministic(t *testing.T) {
	_, _, a := DocIdentity("rules_v3.2.1.docx")
	_, _, b := DocIdentity("rules_v3.2.1.docx")
	if a != b {
		t.Errorf("doc ids differ: %q vs %q", a, b)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("doc.txt", nil)

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusExtracting, "extracting nodes"},
		{StatusEncoding, "encoding paths"},
		{StatusCleaning, "cleaning and chunking"},
		{StatusAggregating, "aggregating sections"},
		{StatusIndexing, "writing index records"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := NewJob("doc.txt", nil)
	job.AddError("page 3 unreadable")
	job.AddError("index abc: queue full")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "page 3 unreadable" {
		t.Errorf("first error = %q", snap.Progress.Errors[0])
	}
}

func TestJob_UpdateProgress(t *testing.T) {
	job := NewJob("doc.txt", nil)
	job.UpdateProgress(func(p *Progress) {
		p.TotalPages = 12
		p.TotalNodes = 340
	})
	job.UpdateProgress(func(p *Progress) {
		p.TotalChunks = 96
	})

	snap := job.Snapshot()
	if snap.Progress.TotalPages != 12 || snap.Progress.TotalNodes != 340 || snap.Progress.TotalChunks != 96 {
		t.Errorf("progress: %+v", snap.Progress)
	}
}

func TestJob_ReleaseFileData(t *testing.T) {
	job := NewJob("doc.txt", []byte("content"))
	if string(job.FileData()) != "content" {
		t.Errorf("file data = %q", job.FileData())
	}
	job.ReleaseFileData()
	if job.FileData() != nil {
		t.Error("expected file data released")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	job := NewJob("doc.txt", nil)
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("doc.txt", nil)
	store.Put(job)

	got := store.Get(job.ID)
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != job.ID {
		t.Errorf("expected ID %q, got %q", job.ID, got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewJob("old.txt", nil)
	store.Put(expired)

	time.Sleep(100 * time.Millisecond)

	fresh := NewJob("new.txt", nil)
	store.Put(fresh)

	store.Cleanup()

	if store.Get(expired.ID) != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
