package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docstruct/internal/api"
	"github.com/dgallion1/docstruct/internal/audit"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/indexer"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/searchstore"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	search := searchstore.NewClient(cfg.SearchURL, cfg.IndexPrefix)
	if err := search.Ping(ctx); err != nil {
		log.Warn("search engine unreachable at startup", "url", cfg.SearchURL, "error", err)
	}

	auditStore, err := audit.Open(cfg.AuditDBPath, log)
	if err != nil {
		log.Error("open audit store", "path", cfg.AuditDBPath, "error", err)
		os.Exit(1)
	}

	records, err := audit.NewRecordWriter(cfg.RecordDir)
	if err != nil {
		log.Error("open record directory", "dir", cfg.RecordDir, "error", err)
		os.Exit(1)
	}

	writer := indexer.New(search, cfg.Indexing, log)

	orch := pipeline.NewOrchestrator(cfg, writer, auditStore, records, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, search, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting requests before stopping the pipeline, so no
		// handler submits into a pool that is draining.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		if err := auditStore.Close(); err != nil {
			log.Warn("close audit store", "error", err)
		}
		search.Close()
	}()

	log.Info("starting docstruct", "port", cfg.Port, "search_url", cfg.SearchURL, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
