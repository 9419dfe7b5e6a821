// Package audit persists the pipeline's decision trail: every node dropped
// during cleaning, every chunk boundary cut, and one report row per
// processed document. Writes are asynchronous and never block processing.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/docstruct/internal/cleaner"
)

// Schema for the audit tables. Applied by Store.Init().
const Schema = `
CREATE TABLE IF NOT EXISTS drop_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL,
	page INTEGER NOT NULL,
	reason TEXT NOT NULL,
	preview TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drop_events_doc ON drop_events(doc_id);

CREATE TABLE IF NOT EXISTS cut_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL,
	chunk_id INTEGER NOT NULL,
	reason TEXT NOT NULL,
	detail TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cut_events_doc ON cut_events(doc_id);

CREATE TABLE IF NOT EXISTS doc_reports (
	doc_id TEXT PRIMARY KEY,
	doc_name TEXT NOT NULL,
	status TEXT NOT NULL,
	total_pages INTEGER NOT NULL,
	total_nodes INTEGER NOT NULL,
	dropped_nodes INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	total_sections INTEGER NOT NULL,
	write_failures INTEGER NOT NULL,
	error TEXT,
	created_at INTEGER NOT NULL
);
`

// DocReport is one per-document processing outcome.
type DocReport struct {
	DocID         string    `json:"doc_id"`
	DocName       string    `json:"doc_name"`
	Status        string    `json:"status"` // success, partial, failed
	TotalPages    int       `json:"total_pages"`
	TotalNodes    int       `json:"total_nodes"`
	DroppedNodes  int       `json:"dropped_nodes"`
	TotalChunks   int       `json:"total_chunks"`
	TotalSections int       `json:"total_sections"`
	WriteFailures int       `json:"write_failures"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type event struct {
	docID  string
	drop   *cleaner.DropEvent
	cut    *cleaner.CutEvent
	report *DocReport
	at     time.Time
}

// Store persists audit events to SQLite asynchronously. Events are buffered
// and dropped (with a log line) rather than blocking when the buffer fills.
type Store struct {
	db     *sql.DB
	log    *slog.Logger
	ch     chan event
	done   chan struct{}
	once   sync.Once
	ownsDB bool
}

// Open opens (or creates) the audit database at path and starts the flush
// loop.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under the worker pool.
	db.SetMaxOpenConns(1)

	s := NewStore(db, log)
	s.ownsDB = true
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing database connection and starts the flush loop.
func NewStore(db *sql.DB, log *slog.Logger) *Store {
	s := &Store{
		db:   db,
		log:  log,
		ch:   make(chan event, 4096),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the audit tables if they do not exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}

// RecordCleaning queues one document's drop and cut trail.
func (s *Store) RecordCleaning(docID string, drops []cleaner.DropEvent, cuts []cleaner.CutEvent) {
	now := time.Now()
	for i := range drops {
		s.enqueue(event{docID: docID, drop: &drops[i], at: now})
	}
	for i := range cuts {
		s.enqueue(event{docID: docID, cut: &cuts[i], at: now})
	}
}

// RecordReport queues the per-document outcome row. Re-processing the same
// document replaces its previous report.
func (s *Store) RecordReport(r DocReport) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.enqueue(event{docID: r.DocID, report: &r, at: r.CreatedAt})
}

func (s *Store) enqueue(e event) {
	select {
	case s.ch <- e:
	default:
		s.log.Warn("audit buffer full, dropping event", "doc_id", e.docID)
	}
}

// Reports returns the most recent document reports.
func (s *Store) Reports(ctx context.Context, limit int) ([]DocReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, doc_name, status, total_pages, total_nodes, dropped_nodes,
		       total_chunks, total_sections, write_failures, error, created_at
		FROM doc_reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query doc reports: %w", err)
	}
	defer rows.Close()

	var out []DocReport
	for rows.Next() {
		var r DocReport
		var errText sql.NullString
		var createdAt int64
		if err := rows.Scan(&r.DocID, &r.DocName, &r.Status, &r.TotalPages, &r.TotalNodes,
			&r.DroppedNodes, &r.TotalChunks, &r.TotalSections, &r.WriteFailures,
			&errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan doc report: %w", err)
		}
		r.Error = errText.String
		r.CreatedAt = time.UnixMicro(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DropCount returns the number of recorded drop events for one document.
func (s *Store) DropCount(ctx context.Context, docID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drop_events WHERE doc_id = ?`, docID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count drop events: %w", err)
	}
	return n, nil
}

// Close drains the buffer and stops the flush loop. Closes the database
// only when the store opened it itself.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]event, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []event) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.log.Error("audit store: begin tx", "error", err)
		return
	}

	for _, e := range batch {
		switch {
		case e.drop != nil:
			_, err = tx.Exec(`INSERT INTO drop_events (doc_id, page, reason, preview, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				e.docID, e.drop.Page, string(e.drop.Reason), e.drop.Preview, e.at.UnixMicro())
		case e.cut != nil:
			_, err = tx.Exec(`INSERT INTO cut_events (doc_id, chunk_id, reason, detail, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				e.docID, e.cut.ChunkID, string(e.cut.Reason.Kind), e.cut.Reason.Detail, e.at.UnixMicro())
		case e.report != nil:
			r := e.report
			_, err = tx.Exec(`INSERT OR REPLACE INTO doc_reports
				(doc_id, doc_name, status, total_pages, total_nodes, dropped_nodes,
				 total_chunks, total_sections, write_failures, error, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.DocID, r.DocName, r.Status, r.TotalPages, r.TotalNodes, r.DroppedNodes,
				r.TotalChunks, r.TotalSections, r.WriteFailures, r.Error, r.CreatedAt.UnixMicro())
		}
		if err != nil {
			s.log.Error("audit store: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("audit store: commit", "error", err)
	}
}
