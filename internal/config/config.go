// Package config loads DiskWatcher's runtime configuration from the
// environment, in the teacher's getEnv/getDurationEnv/getBoolEnv idiom,
// generalized from HTTP server/database settings to catalog/watch/
// discovery settings.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the full set of DiskWatcher settings, assembled once at
// startup from the environment.
type Config struct {
	Log       LogConfig
	Catalog   CatalogConfig
	Run       RunConfig
	Retention RetentionConfig
}

// LogConfig controls logging verbosity and destination.
type LogConfig struct {
	Level    string // debug|info|warn|error
	FilePath string // empty means stderr only
}

// CatalogConfig controls the embedded catalog database.
type CatalogConfig struct {
	Path        string // empty means in-memory, serial-mode fallback applies
	BusyTimeout time.Duration
}

// RunConfig controls scanning and watching behavior.
type RunConfig struct {
	AutoScan            bool
	PollingInterval     time.Duration
	ExcludePatterns     []string
	AutoDiscoverRoots   []string
	AutoDiscoverScan    bool
	DiscoveryInterval   time.Duration
	MaxScanWorkers      int
	ProgressInteractive bool
}

// RetentionConfig controls background pruning of old events/jobs rows.
type RetentionConfig struct {
	Enabled      bool
	EventTTLDays int
	JobTTLDays   int
	Interval     time.Duration
	InitialDelay time.Duration
}

// Load reads configuration from the environment, falling back to
// defaults. DISKWATCHER_CONFIG_DIR (spec.md §6) overrides the on-disk
// config/catalog/log directory root: when DISKWATCHER_CATALOG_PATH or
// DISKWATCHER_LOG_FILE is left unset, the catalog database and log file
// default under it instead of the working directory.
func Load() *Config {
	dir := ConfigDir()

	catalogPath := getEnv("DISKWATCHER_CATALOG_PATH", "")
	if catalogPath == "" {
		if dir != "" {
			catalogPath = filepath.Join(dir, "diskwatcher.db")
		} else {
			catalogPath = "./diskwatcher.db"
		}
	}

	logFilePath := getEnv("DISKWATCHER_LOG_FILE", "")
	if logFilePath == "" && dir != "" {
		logFilePath = filepath.Join(dir, "diskwatcher.log")
	}

	return &Config{
		Log: LogConfig{
			Level:    getEnv("DISKWATCHER_LOG_LEVEL", "info"),
			FilePath: logFilePath,
		},
		Catalog: CatalogConfig{
			Path:        catalogPath,
			BusyTimeout: getDurationEnv("DISKWATCHER_CATALOG_BUSY_TIMEOUT", 10*time.Second),
		},
		Run: RunConfig{
			AutoScan:            getBoolEnv("DISKWATCHER_RUN_AUTO_SCAN", true),
			PollingInterval:     getDurationEnv("DISKWATCHER_RUN_POLLING_INTERVAL", 30*time.Second),
			ExcludePatterns:     getStringSliceEnv("DISKWATCHER_RUN_EXCLUDE_PATTERNS", nil),
			AutoDiscoverRoots:   getStringSliceEnv("DISKWATCHER_RUN_AUTO_DISCOVER_ROOTS", nil),
			AutoDiscoverScan:    getBoolEnv("DISKWATCHER_RUN_AUTO_DISCOVER_SCAN", true),
			DiscoveryInterval:   getDurationEnv("DISKWATCHER_RUN_DISCOVERY_INTERVAL", 5*time.Second),
			MaxScanWorkers:      getIntEnv("DISKWATCHER_RUN_MAX_SCAN_WORKERS", 0),
			ProgressInteractive: getBoolEnv("DISKWATCHER_RUN_PROGRESS_INTERACTIVE", false),
		},
		Retention: RetentionConfig{
			Enabled:      getBoolEnv("DISKWATCHER_RETENTION_ENABLED", false),
			EventTTLDays: getIntEnv("DISKWATCHER_RETENTION_EVENT_TTL_DAYS", 90),
			JobTTLDays:   getIntEnv("DISKWATCHER_RETENTION_JOB_TTL_DAYS", 30),
			Interval:     getDurationEnv("DISKWATCHER_RETENTION_INTERVAL", time.Hour),
			InitialDelay: getDurationEnv("DISKWATCHER_RETENTION_INITIAL_DELAY", time.Minute),
		},
	}
}

// ConfigDir returns DISKWATCHER_CONFIG_DIR, or "" if unset.
func ConfigDir() string {
	return os.Getenv("DISKWATCHER_CONFIG_DIR")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
