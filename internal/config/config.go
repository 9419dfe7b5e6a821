package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docstruct/internal/cleaner"
	"github.com/dgallion1/docstruct/internal/indexer"
)

type Config struct {
	Port string

	// Bearer key guarding /api routes. Empty disables auth.
	APIKey string

	// Search engine connection
	SearchURL   string
	IndexPrefix string

	// OCR sidecar
	OCRServiceURL        string
	OCREscalateThreshold float64
	PDFMinNativeChars    int

	// Cleaning thresholds
	Cleaning cleaner.Config

	// Index writes
	Indexing indexer.Config

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Audit trail
	AuditDBPath string
	RecordDir   string
}

// Load reads the environment (plus a .env file when present) into a Config
// with defaults filled in.
func Load() Config {
	godotenv.Load()

	cfg := Config{
		Port:   envOr("PORT", "8090"),
		APIKey: os.Getenv("API_KEY"),

		SearchURL:   envOr("SEARCH_URL", "http://localhost:9200"),
		IndexPrefix: envOr("INDEX_PREFIX", "docstruct"),

		OCRServiceURL:        os.Getenv("OCR_SERVICE_URL"),
		OCREscalateThreshold: envFloat("OCR_ESCALATE_THRESHOLD", 0.6),
		PDFMinNativeChars:    envInt("PDF_MIN_NATIVE_CHARS", 50),

		Cleaning: cleaner.Config{
			ConfidenceThreshold:  envFloat("CONFIDENCE_THRESHOLD", 0.1),
			ShortLineThreshold:   envInt("SHORT_LINE_THRESHOLD", 20),
			HeightRatioThreshold: envFloat("HEIGHT_RATIO_THRESHOLD", 1.3),
			MinGapThreshold:      envFloat("MIN_GAP_THRESHOLD", 15.0),
			MaxChunkLength:       envInt("MAX_CHUNK_LENGTH", 2000),
			MinChunkLength:       envInt("MIN_CHUNK_LENGTH", 15),
		},

		Indexing: indexer.Config{
			BulkSize:      envInt("BULK_SIZE", 1000),
			MaxRetries:    envInt("INDEX_MAX_RETRIES", 3),
			WriteDeadline: envDuration("INDEX_WRITE_DEADLINE", 2*time.Minute),
		},

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		AuditDBPath: envOr("AUDIT_DB_PATH", "audit.db"),
		RecordDir:   envOr("RECORD_DIR", "records"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate fails fast on a configuration the pipeline cannot run with.
func (c Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("SEARCH_URL is required")
	}
	if c.IndexPrefix == "" {
		return fmt.Errorf("INDEX_PREFIX is required")
	}
	if c.OCREscalateThreshold < 0 || c.OCREscalateThreshold > 1 {
		return fmt.Errorf("OCR_ESCALATE_THRESHOLD %v outside [0,1]", c.OCREscalateThreshold)
	}
	if err := c.Cleaning.Validate(); err != nil {
		return fmt.Errorf("cleaning config: %w", err)
	}
	if err := c.Indexing.Validate(); err != nil {
		return fmt.Errorf("indexing config: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
