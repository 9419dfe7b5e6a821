package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.IndexPrefix != "docstruct" {
		t.Errorf("index prefix = %q", cfg.IndexPrefix)
	}
	if cfg.Cleaning.ConfidenceThreshold != 0.1 {
		t.Errorf("confidence threshold = %v", cfg.Cleaning.ConfidenceThreshold)
	}
	if cfg.Indexing.BulkSize != 1000 {
		t.Errorf("bulk size = %d", cfg.Indexing.BulkSize)
	}
	if cfg.OCREscalateThreshold != 0.6 {
		t.Errorf("escalate threshold = %v", cfg.OCREscalateThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("MIN_GAP_THRESHOLD", "25.5")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("SEARCH_URL", "http://search:9200")

	cfg := Load()

	if cfg.WorkerCount != 8 {
		t.Errorf("worker count = %d", cfg.WorkerCount)
	}
	if cfg.Cleaning.MinGapThreshold != 25.5 {
		t.Errorf("min gap = %v", cfg.Cleaning.MinGapThreshold)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("job ttl = %v", cfg.JobTTL)
	}
	if cfg.SearchURL != "http://search:9200" {
		t.Errorf("search url = %q", cfg.SearchURL)
	}
}

func TestValidate_RejectsBadThresholds(t *testing.T) {
	cfg := Load()
	cfg.OCREscalateThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for escalate threshold above 1")
	}

	cfg = Load()
	cfg.Cleaning.ConfidenceThreshold = -1
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for negative confidence threshold")
	}

	cfg = Load()
	cfg.IndexPrefix = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for empty index prefix")
	}
}
