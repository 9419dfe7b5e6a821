package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/docstruct/internal/audit"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/extractor"
	"github.com/dgallion1/docstruct/internal/indexer"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/searchstore"
)

// Batch front end: processes every supported document in a directory and
// prints a run summary. Configuration comes from the environment, same as
// the server.
func main() {
	dir := flag.String("dir", "", "directory of documents to process (required)")
	recreate := flag.Bool("recreate", false, "drop and recreate both indices before processing")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: indexer -dir <documents> [-recreate] [-v]")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, *dir, *recreate, log); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, dir string, recreate bool, log *slog.Logger) error {
	search := searchstore.NewClient(cfg.SearchURL, cfg.IndexPrefix)
	defer search.Close()

	if err := search.Ping(ctx); err != nil {
		return fmt.Errorf("search engine unreachable: %w", err)
	}
	if recreate {
		log.Info("recreating indices", "chunks", search.ChunksIndex(), "sections", search.SectionsIndex())
		if err := search.EnsureIndices(ctx); err != nil {
			return fmt.Errorf("recreate indices: %w", err)
		}
	}

	auditStore, err := audit.Open(cfg.AuditDBPath, log)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer auditStore.Close()

	records, err := audit.NewRecordWriter(cfg.RecordDir)
	if err != nil {
		return fmt.Errorf("open record directory: %w", err)
	}

	files, err := collectFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported documents under %s", dir)
	}
	log.Info("starting batch run", "documents", len(files))

	opts := extractor.Options{MinNativeChars: cfg.PDFMinNativeChars, Log: log}
	if cfg.OCRServiceURL != "" {
		opts.OCR = extractor.NewEscalator(
			extractor.NewFastRecognizer(cfg.OCRServiceURL),
			extractor.NewAccurateRecognizer(cfg.OCRServiceURL),
			cfg.OCREscalateThreshold,
			log,
		)
	}
	worker := pipeline.NewWorker(opts, cfg.Cleaning, indexer.New(search, cfg.Indexing, log), auditStore, records, log)

	var succeeded, partial, failed, chunks, sections int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("read file", "path", path, "error", err)
			failed++
			continue
		}

		job := pipeline.NewJob(filepath.Base(path), data)
		result := worker.ProcessDocument(ctx, job, log.With("doc_id", job.DocID))

		switch result.Status {
		case "success":
			succeeded++
		case "partial":
			partial++
		default:
			failed++
		}
		chunks += result.ChunkStats.TotalChunks
		sections += result.SectionStats.TotalSections
	}

	summary := map[string]any{
		"documents": len(files),
		"succeeded": succeeded,
		"partial":   partial,
		"failed":    failed,
		"chunks":    chunks,
		"sections":  sections,
	}
	log.Info("batch run complete",
		"documents", len(files), "succeeded", succeeded, "partial", partial,
		"failed", failed, "chunks", chunks, "sections", sections)
	fmt.Println(mustJSON(summary))

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(files))
	}
	return nil
}

// collectFiles walks dir and returns the supported documents in it, sorted
// by path so runs are deterministic.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extractor.IsSupportedExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
