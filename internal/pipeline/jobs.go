package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a document processing job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusEncoding    JobStatus = "encoding"
	StatusCleaning    JobStatus = "cleaning"
	StatusAggregating JobStatus = "aggregating"
	StatusIndexing    JobStatus = "indexing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
)

// Job tracks the state of a single document run through the pipeline.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	DocID   string `json:"doc_id"`
	DocName string `json:"doc_name"`
	Version string `json:"version"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks per-phase counts as the pipeline advances.
type Progress struct {
	TotalPages     int      `json:"total_pages"`
	TotalNodes     int      `json:"total_nodes"`
	DroppedNodes   int      `json:"dropped_nodes"`
	TotalChunks    int      `json:"total_chunks"`
	TotalSections  int      `json:"total_sections"`
	RecordsIndexed int      `json:"records_indexed"`
	WriteFailures  int      `json:"write_failures"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job holding the raw document bytes.
func NewJob(filename string, data []byte) *Job {
	now := time.Now()
	docName, version, docID := DocIdentity(filename)
	return &Job{
		ID:        uuid.NewString(),
		DocID:     docID,
		DocName:   docName,
		Version:   version,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// UpdateProgress applies fn under the job lock.
func (j *Job) UpdateProgress(fn func(*Progress)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.Progress)
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// ReleaseFileData drops the raw bytes once processing is done.
func (j *Job) ReleaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	DocID    string    `json:"doc_id"`
	DocName  string    `json:"doc_name"`
	Version  string    `json:"version"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:       j.ID,
		DocID:    j.DocID,
		DocName:  j.DocName,
		Version:  j.Version,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Progress: p,
	}
}
