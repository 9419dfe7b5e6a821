package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docstruct/internal/audit"
)

// documentSummary is one report row cross-checked against the drop trail:
// recorded_drops counts the drop events actually persisted for the document,
// so a mismatch with dropped_nodes surfaces lost audit writes.
type documentSummary struct {
	audit.DocReport
	RecordedDrops int `json:"recorded_drops"`
}

// handleListDocuments returns the most recent per-document processing
// reports from the audit trail.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			jsonError(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	reports, err := s.orchestrator.Audit().Reports(r.Context(), limit)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]documentSummary, 0, len(reports))
	for _, rep := range reports {
		drops, err := s.orchestrator.Audit().DropCount(r.Context(), rep.DocID)
		if err != nil {
			s.log.Warn("count drop events", "doc_id", rep.DocID, "error", err)
		}
		summaries = append(summaries, documentSummary{DocReport: rep, RecordedDrops: drops})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": summaries})
}

// handleDeleteDocument removes every chunk and section record belonging to
// one document from both indices.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	chunksDeleted, err := s.search.DeleteByDocID(ctx, s.search.ChunksIndex(), docID)
	if err != nil {
		jsonError(w, "failed to delete chunks: "+err.Error(), http.StatusBadGateway)
		return
	}
	sectionsDeleted, err := s.search.DeleteByDocID(ctx, s.search.SectionsIndex(), docID)
	if err != nil {
		jsonError(w, "failed to delete sections: "+err.Error(), http.StatusBadGateway)
		return
	}

	s.log.Info("document deleted",
		"doc_id", docID,
		"chunks_deleted", chunksDeleted,
		"sections_deleted", sectionsDeleted)
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":           docID,
		"chunks_deleted":   chunksDeleted,
		"sections_deleted": sectionsDeleted,
	})
}

// handleReindex recreates both indices and replays every persisted document
// record through the index writer. Index recreation drops existing data, so
// a partial replay leaves the indices holding only what was rewritten.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docIDs, err := s.orchestrator.Records().DocIDs()
	if err != nil {
		jsonError(w, "failed to list records: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.search.EnsureIndices(ctx); err != nil {
		jsonError(w, "failed to recreate indices: "+err.Error(), http.StatusBadGateway)
		return
	}

	var chunksWritten, sectionsWritten, failures int
	var docErrors []map[string]string
	for _, docID := range docIDs {
		chunkDoc, sectionDoc, err := s.orchestrator.Records().Load(docID)
		if err != nil {
			docErrors = append(docErrors, map[string]string{"doc_id": docID, "error": err.Error()})
			continue
		}
		report := s.orchestrator.Writer().WriteDocument(ctx, chunkDoc.DocID, chunkDoc.DocName, chunkDoc.Chunks, sectionDoc.Sections)
		chunksWritten += report.ChunksWritten
		sectionsWritten += report.SectionsWritten
		failures += len(report.Failures)
	}

	s.log.Info("reindex complete",
		"documents", len(docIDs),
		"chunks_written", chunksWritten,
		"sections_written", sectionsWritten,
		"failures", failures+len(docErrors))
	writeJSON(w, http.StatusOK, map[string]any{
		"documents":        len(docIDs),
		"chunks_written":   chunksWritten,
		"sections_written": sectionsWritten,
		"write_failures":   failures,
		"doc_errors":       docErrors,
	})
}
