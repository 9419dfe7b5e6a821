// Package indexer maps chunk and section sequences into index records and
// performs the batched, retryable writes into the two search collections.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dgallion1/docstruct/internal/docmodel"
	"github.com/dgallion1/docstruct/internal/searchstore"
)

// Store is the slice of the search client the writer needs.
type Store interface {
	ChunksIndex() string
	SectionsIndex() string
	BulkUpsert(ctx context.Context, index string, docs []searchstore.BulkDoc) (*searchstore.BulkResult, error)
	UpsertOne(ctx context.Context, index, id string, body any) error
}

// Config holds the write parameters.
type Config struct {
	BulkSize      int           // records per bulk request
	MaxRetries    int           // per-item retry budget after a rejection
	WriteDeadline time.Duration // ceiling for one document's writes
}

func DefaultConfig() Config {
	return Config{
		BulkSize:      1000,
		MaxRetries:    3,
		WriteDeadline: 2 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.BulkSize <= 0 {
		return fmt.Errorf("bulk size %d must be positive", c.BulkSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries %d must not be negative", c.MaxRetries)
	}
	if c.WriteDeadline <= 0 {
		return fmt.Errorf("write deadline %v must be positive", c.WriteDeadline)
	}
	return nil
}

// Failure is one record that could not be written after retries.
type Failure struct {
	GlobalID string `json:"global_id"`
	Index    string `json:"index"`
	Reason   string `json:"reason"`
}

// Report summarizes one document's index writes. Failures never abort the
// remaining batches; they accumulate here for the caller to surface.
type Report struct {
	DocID           string    `json:"doc_id"`
	ChunksWritten   int       `json:"chunks_written"`
	SectionsWritten int       `json:"sections_written"`
	Failures        []Failure `json:"failures,omitempty"`
}

// Writer performs the index writes for one or more documents. Safe for
// concurrent use.
type Writer struct {
	store   Store
	cfg     Config
	log     *slog.Logger
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

func New(store Store, cfg Config, log *slog.Logger) *Writer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "searchstore",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Writer{
		store:   store,
		cfg:     cfg,
		log:     log,
		breaker: breaker,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// WriteDocument persists all chunk and section records for one document.
// It never aborts: records that could not be written after retries come back
// itemized in the report, including batches abandoned when the write
// deadline expires, so the caller can surface a partial result.
func (w *Writer) WriteDocument(ctx context.Context, docID, docName string, chunks []docmodel.Chunk, sections []docmodel.Section) *Report {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.WriteDeadline)
	defer cancel()

	now := w.now().UTC()
	report := &Report{DocID: docID}

	chunkDocs := make([]searchstore.BulkDoc, len(chunks))
	for i, ch := range chunks {
		rec := MapChunk(docID, docName, ch, now)
		chunkDocs[i] = searchstore.BulkDoc{ID: rec.GlobalID, Body: rec}
	}
	sectionDocs := make([]searchstore.BulkDoc, len(sections))
	for i, sec := range sections {
		rec := MapSection(docID, docName, sec, now)
		sectionDocs[i] = searchstore.BulkDoc{ID: rec.GlobalID, Body: rec}
	}

	written, failures := w.writeAll(ctx, w.store.ChunksIndex(), chunkDocs)
	report.ChunksWritten = written
	report.Failures = append(report.Failures, failures...)

	written, failures = w.writeAll(ctx, w.store.SectionsIndex(), sectionDocs)
	report.SectionsWritten = written
	report.Failures = append(report.Failures, failures...)

	if len(report.Failures) > 0 {
		w.log.Warn("index write incomplete",
			"doc_id", docID,
			"chunks_written", report.ChunksWritten,
			"sections_written", report.SectionsWritten,
			"failed", len(report.Failures))
	}
	return report
}

// writeAll splits docs into bulk batches. A failing batch never stops the
// ones after it.
func (w *Writer) writeAll(ctx context.Context, index string, docs []searchstore.BulkDoc) (int, []Failure) {
	var written int
	var failures []Failure
	for start := 0; start < len(docs); start += w.cfg.BulkSize {
		end := min(start+w.cfg.BulkSize, len(docs))
		n, fs := w.writeBatch(ctx, index, docs[start:end])
		written += n
		failures = append(failures, fs...)
	}
	return written, failures
}

func (w *Writer) writeBatch(ctx context.Context, index string, batch []searchstore.BulkDoc) (int, []Failure) {
	res, err := w.bulkWithRetry(ctx, index, batch)
	if err != nil {
		failures := make([]Failure, len(batch))
		for i, d := range batch {
			failures[i] = Failure{GlobalID: d.ID, Index: index, Reason: err.Error()}
		}
		return 0, failures
	}

	written := res.Succeeded
	var failures []Failure
	for _, item := range res.Failed {
		doc, ok := findDoc(batch, item.ID)
		if ok && item.Retryable() && w.cfg.MaxRetries > 0 {
			if err := w.retryItem(ctx, index, doc); err == nil {
				written++
				continue
			}
		}
		failures = append(failures, Failure{GlobalID: item.ID, Index: index, Reason: item.Reason})
	}
	return written, failures
}

// bulkWithRetry retries whole-request failures (network, engine overload)
// with backoff. Per-item rejections come back in the result untouched.
func (w *Writer) bulkWithRetry(ctx context.Context, index string, batch []searchstore.BulkDoc) (*searchstore.BulkResult, error) {
	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := w.sleep(ctx, backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		out, err := w.breaker.Execute(func() (any, error) {
			return w.store.BulkUpsert(ctx, index, batch)
		})
		if err == nil {
			return out.(*searchstore.BulkResult), nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		w.log.Warn("bulk write failed, retrying",
			"index", index, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (w *Writer) retryItem(ctx context.Context, index string, doc searchstore.BulkDoc) error {
	var lastErr error
	for attempt := 0; attempt < w.cfg.MaxRetries; attempt++ {
		if err := w.sleep(ctx, backoff(attempt)); err != nil {
			return err
		}
		_, err := w.breaker.Execute(func() (any, error) {
			return nil, w.store.UpsertOne(ctx, index, doc.ID, doc.Body)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return lastErr
}

func findDoc(batch []searchstore.BulkDoc, id string) (searchstore.BulkDoc, bool) {
	for _, d := range batch {
		if d.ID == id {
			return d, true
		}
	}
	return searchstore.BulkDoc{}, false
}

// isRetryable reports whether an error is transient. An open breaker is
// deliberately not retryable: the point is to fail fast.
func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var re *searchstore.RetryableError
	return errors.As(err, &re)
}

// backoff returns the wait before retry attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
