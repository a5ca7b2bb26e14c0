// Package config loads epochscript's runtime configuration from a .env file
// and environment variables (spec.md §6 "Environment variables recognized",
// expanded with the ambient server/pipeline settings this repo adds on top).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration for cmd/server.
type Config struct {
	DataDir  string // base directory for audit db and any on-disk cache
	LogLevel string // debug, info, warn, error
	DevMode  bool
	Port     int

	ScriptPath string // path to the strategy script compiled at startup

	// MaxWorkerThreads caps data-parallel worker goroutines in the pipeline
	// orchestrator (spec §5, env EPOCH_MAX_TBB_THREADS). Zero means
	// "size from runtime.NumCPU() at call time" (health.WorkerCount).
	MaxWorkerThreads int
	// DisableParallelReports forces single-worker transform execution (spec
	// §5, env EPOCH_DISABLE_PARALLEL_REPORTS). Per spec §9 open question,
	// MaxWorkerThreads takes precedence when both are set.
	DisableParallelReports bool

	WebsocketURL string // IWebSocketManager upstream URL

	S3Bucket string
	S3Region string

	AuditDBPath string

	// AssetIds is the comma-separated universe of assets the data loader
	// fetches (spec §6 "declared assets"); e.g. "AAPL,MSFT,ESZ5".
	AssetIds []string
	// BaseTimeframe is the native timeframe of the raw loaded bars.
	BaseTimeframe string
	// Timeframes lists the additional timeframes the resampler builds on
	// top of BaseTimeframe (spec §4.10).
	Timeframes []string

	// RefreshCron schedules periodic RunPipeline cycles (spec §4.9); empty
	// disables scheduled refreshes.
	RefreshCron string
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults, and ensures DataDir exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("EPOCH_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create data dir: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		Port:                   getEnvAsInt("EPOCH_PORT", 8090),
		ScriptPath:             getEnv("EPOCH_SCRIPT_PATH", ""),
		MaxWorkerThreads:       getEnvAsInt("EPOCH_MAX_TBB_THREADS", 0),
		DisableParallelReports: getEnvAsBool("EPOCH_DISABLE_PARALLEL_REPORTS", false),
		WebsocketURL:           getEnv("EPOCH_WEBSOCKET_URL", ""),
		S3Bucket:               getEnv("EPOCH_S3_BUCKET", ""),
		S3Region:               getEnv("EPOCH_S3_REGION", "us-east-1"),
		AuditDBPath:            filepath.Join(absDataDir, "audit.sqlite"),
		AssetIds:               splitCSV(getEnv("EPOCH_ASSETS", "")),
		BaseTimeframe:          getEnv("EPOCH_BASE_TIMEFRAME", "1D"),
		Timeframes:             splitCSV(getEnv("EPOCH_TIMEFRAMES", "")),
		RefreshCron:            getEnv("EPOCH_REFRESH_CRON", ""),
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// WorkerLimit resolves the effective worker cap per spec §9's precedence
// rule: MaxWorkerThreads, if set, always wins over DisableParallelReports.
func (c *Config) WorkerLimit(fallback int) int {
	if c.MaxWorkerThreads > 0 {
		return c.MaxWorkerThreads
	}
	if c.DisableParallelReports {
		return 1
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
