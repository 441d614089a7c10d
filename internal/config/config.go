package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port        string
	MetricsPort int

	// DataDir is the root for everything the server writes to disk.
	DataDir string

	GFSBaseURL    string
	Grib2JSONPath string

	// RefreshInterval controls how often the scheduler tops up the cache.
	RefreshInterval time.Duration

	// PublishDelay is how long after a cycle's nominal hour its data is
	// assumed to be available upstream.
	PublishDelay time.Duration

	// RetentionCycles is how many recent cycles the cache keeps.
	RetentionCycles int

	FetchTimeout   time.Duration
	ConvertTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.MetricsPort = getenvInt("METRICS_PORT", 9090)
	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.GFSBaseURL = os.Getenv("GFS_BASE_URL")
	cfg.Grib2JSONPath = getenvDefault("GRIB2JSON_PATH", "grib2json")

	intervalStr := getenvDefault("REFRESH_INTERVAL", "10m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	delayStr := getenvDefault("PUBLISH_DELAY", "3h40m")
	delay, err := time.ParseDuration(delayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLISH_DELAY: %w", err)
	}
	cfg.PublishDelay = delay

	cfg.RetentionCycles = getenvInt("RETENTION_CYCLES", 5)
	if cfg.RetentionCycles < 1 {
		return nil, fmt.Errorf("RETENTION_CYCLES must be at least 1")
	}

	fetchStr := getenvDefault("FETCH_TIMEOUT", "3m")
	fetch, err := time.ParseDuration(fetchStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchTimeout = fetch

	convertStr := getenvDefault("CONVERT_TIMEOUT", "2m")
	convert, err := time.ParseDuration(convertStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CONVERT_TIMEOUT: %w", err)
	}
	cfg.ConvertTimeout = convert

	return cfg, nil
}

// DatasetDir is where published cycle artifacts live.
func (c *AppConfig) DatasetDir() string {
	return filepath.Join(c.DataDir, "json")
}

// WorkDir holds transient pipeline files.
func (c *AppConfig) WorkDir() string {
	return filepath.Join(c.DataDir, "work")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
