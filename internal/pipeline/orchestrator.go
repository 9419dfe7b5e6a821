package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docstruct/internal/audit"
	"github.com/dgallion1/docstruct/internal/cleaner"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/extractor"
	"github.com/dgallion1/docstruct/internal/indexer"
)

// Orchestrator manages the document processing pipeline: a bounded queue
// feeding a fixed worker pool, plus the in-memory job registry.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	writer  *indexer.Writer
	audit   *audit.Store
	records *audit.RecordWriter
	log     *slog.Logger
	cfg     config.Config

	extractOpts extractor.Options
	cleanCfg    cleaner.Config

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewOrchestrator creates the pipeline. Call Start to launch the workers.
func NewOrchestrator(cfg config.Config, writer *indexer.Writer, auditStore *audit.Store, records *audit.RecordWriter, log *slog.Logger) *Orchestrator {
	opts := extractor.Options{
		MinNativeChars: cfg.PDFMinNativeChars,
		Log:            log,
	}
	if cfg.OCRServiceURL != "" {
		opts.OCR = extractor.NewEscalator(
			extractor.NewFastRecognizer(cfg.OCRServiceURL),
			extractor.NewAccurateRecognizer(cfg.OCRServiceURL),
			cfg.OCREscalateThreshold,
			log,
		)
	}
	return &Orchestrator{
		jobs:        NewJobStore(cfg.JobTTL),
		queue:       make(chan *Job, cfg.MaxQueueSize),
		writer:      writer,
		audit:       auditStore,
		records:     records,
		log:         log,
		cfg:         cfg,
		extractOpts: opts,
		cleanCfg:    cfg.Cleaning,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.extractOpts, o.cleanCfg, o.writer, o.audit, o.records, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job := <-o.queue:
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. The queue channel stays open so
// a Submit racing the shutdown cannot panic; workers drain via the canceled
// context instead.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	if o.stopped.Load() {
		job.SetStatus(StatusFailed, "shutting_down")
		return fmt.Errorf("pipeline is shutting down")
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Audit exposes the audit store for API handlers.
func (o *Orchestrator) Audit() *audit.Store {
	return o.audit
}

// Records exposes the persisted document records for the reindex path.
func (o *Orchestrator) Records() *audit.RecordWriter {
	return o.records
}

// Writer exposes the index writer for the reindex path.
func (o *Orchestrator) Writer() *indexer.Writer {
	return o.writer
}
