package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/audit"
	"github.com/dgallion1/docstruct/internal/cleaner"
	"github.com/dgallion1/docstruct/internal/docmodel"
	"github.com/dgallion1/docstruct/internal/extractor"
	"github.com/dgallion1/docstruct/internal/indexer"
	"github.com/dgallion1/docstruct/internal/pathcode"
	"github.com/dgallion1/docstruct/internal/sectioner"
)

// DocIdentity derives the document name, version, and stable doc id from a
// filename. Version tokens in the name (V2.1.0 and the like) become the
// version; missing ones default to v1.0.0.
func DocIdentity(filename string) (docName, version, docID string) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	version = docmodel.ExtractVersion(base)
	docName = docmodel.NormalizeDocName(base)
	docID = docmodel.DocID(base, version)
	return docName, version, docID
}

// DocResult is the outcome of one document run, independent of job state.
type DocResult struct {
	DocID        string                `json:"doc_id"`
	DocName      string                `json:"doc_name"`
	Version      string                `json:"version"`
	Status       string                `json:"status"` // success, partial, failed
	ChunkStats   docmodel.ChunkStats   `json:"chunk_stats"`
	SectionStats docmodel.SectionStats `json:"section_stats"`
	IndexReport  *indexer.Report       `json:"index_report,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// Worker runs one document at a time through the full pipeline:
// extract, encode paths, clean, aggregate, persist, index.
type Worker struct {
	extractOpts extractor.Options
	cleanCfg    cleaner.Config
	writer      *indexer.Writer
	audit       *audit.Store
	records     *audit.RecordWriter
	log         *slog.Logger
}

func NewWorker(extractOpts extractor.Options, cleanCfg cleaner.Config, writer *indexer.Writer, auditStore *audit.Store, records *audit.RecordWriter, log *slog.Logger) *Worker {
	return &Worker{
		extractOpts: extractOpts,
		cleanCfg:    cleanCfg,
		writer:      writer,
		audit:       auditStore,
		records:     records,
		log:         log,
	}
}

// Process runs the full pipeline for a queued job, updating its status and
// progress as phases complete.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	result := w.ProcessDocument(ctx, job, log)
	job.ReleaseFileData()

	switch result.Status {
	case "success":
		job.SetStatus(StatusCompleted, "done")
	case "partial":
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "failed")
	}
}

// ProcessDocument runs the phases and records the audit trail. It always
// returns a result; a hard failure is reported in Status/Error rather than
// panicking the worker.
func (w *Worker) ProcessDocument(ctx context.Context, job *Job, log *slog.Logger) *DocResult {
	result := &DocResult{DocID: job.DocID, DocName: job.DocName, Version: job.Version}

	fail := func(phase string, err error) *DocResult {
		log.Error(phase+" failed", "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		result.Status = "failed"
		result.Error = err.Error()
		w.audit.RecordReport(audit.DocReport{
			DocID:   job.DocID,
			DocName: job.DocName,
			Status:  "failed",
			Error:   err.Error(),
		})
		return result
	}

	// Phase 1: extract the raw node stream.
	job.SetStatus(StatusExtracting, "extracting nodes")
	src, err := extractor.ForFile(job.Filename, w.extractOpts)
	if err != nil {
		return fail("extract", err)
	}
	stream, err := src.Extract(ctx, bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		return fail("extract", err)
	}
	job.UpdateProgress(func(p *Progress) {
		p.TotalPages = stream.PageCount
		p.TotalNodes = len(stream.Nodes)
	})
	log.Info("extracted nodes", "pages", stream.PageCount, "nodes", len(stream.Nodes))

	// Phase 2: assign structural paths. The encoder is per-document state.
	job.SetStatus(StatusEncoding, "encoding paths")
	annotated := pathcode.New(pathcode.DefaultRules()).Annotate(stream.Nodes)

	// Phase 3: clean and chunk.
	job.SetStatus(StatusCleaning, "cleaning and chunking")
	cleaned := cleaner.New(w.cleanCfg, log).Clean(annotated, stream.PageCount)
	result.ChunkStats = cleaned.Stats
	job.UpdateProgress(func(p *Progress) {
		p.DroppedNodes = cleaned.Stats.DroppedNodes
		p.TotalChunks = cleaned.Stats.TotalChunks
	})
	w.audit.RecordCleaning(job.DocID, cleaned.Drops, cleaned.Cuts)
	log.Info("cleaned document",
		"chunks", cleaned.Stats.TotalChunks,
		"dropped_nodes", cleaned.Stats.DroppedNodes)

	// Phase 4: aggregate into sections.
	job.SetStatus(StatusAggregating, "aggregating sections")
	sections, sectionStats := sectioner.Aggregate(cleaned.Chunks)
	result.SectionStats = sectionStats
	job.UpdateProgress(func(p *Progress) {
		p.TotalSections = sectionStats.TotalSections
	})

	// Persist the full records for audit and reindex.
	chunkDoc := docmodel.ChunkDocument{
		DocName: job.DocName,
		DocID:   job.DocID,
		Stats:   cleaned.Stats,
		Chunks:  cleaned.Chunks,
	}
	sectionDoc := docmodel.SectionDocument{
		DocName:  job.DocName,
		DocID:    job.DocID,
		Stats:    sectionStats,
		Sections: sections,
	}
	if err := w.records.Write(chunkDoc, sectionDoc); err != nil {
		log.Warn("record write failed", "error", err)
		job.AddError(fmt.Sprintf("records: %s", err))
	}

	// Phase 5: index both granularities. Failed records, including batches
	// abandoned at the write deadline, come back itemized in the report and
	// demote the document to partial rather than failing it outright.
	job.SetStatus(StatusIndexing, "writing index records")
	report := w.writer.WriteDocument(ctx, job.DocID, job.DocName, cleaned.Chunks, sections)
	result.IndexReport = report
	job.UpdateProgress(func(p *Progress) {
		p.RecordsIndexed = report.ChunksWritten + report.SectionsWritten
		p.WriteFailures = len(report.Failures)
	})
	for _, f := range report.Failures {
		job.AddError(fmt.Sprintf("index %s: %s", f.GlobalID, f.Reason))
	}

	result.Status = "success"
	if len(report.Failures) > 0 {
		result.Status = "partial"
	}

	w.audit.RecordReport(audit.DocReport{
		DocID:         job.DocID,
		DocName:       job.DocName,
		Status:        result.Status,
		TotalPages:    cleaned.Stats.TotalPages,
		TotalNodes:    cleaned.Stats.TotalNodes,
		DroppedNodes:  cleaned.Stats.DroppedNodes,
		TotalChunks:   cleaned.Stats.TotalChunks,
		TotalSections: sectionStats.TotalSections,
		WriteFailures: len(report.Failures),
	})
	log.Info("document processed",
		"status", result.Status,
		"chunks", cleaned.Stats.TotalChunks,
		"sections", sectionStats.TotalSections,
		"write_failures", len(report.Failures))
	return result
}
