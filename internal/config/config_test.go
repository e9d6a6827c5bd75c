package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "./diskwatcher.db", cfg.Catalog.Path)
	require.Equal(t, 10*time.Second, cfg.Catalog.BusyTimeout)
	require.True(t, cfg.Run.AutoScan)
	require.Empty(t, cfg.Run.ExcludePatterns)
	require.False(t, cfg.Retention.Enabled)
	require.Equal(t, 90, cfg.Retention.EventTTLDays)
}

func TestLoadReadsOverridesFromEnvironment(t *testing.T) {
	t.Setenv("DISKWATCHER_LOG_LEVEL", "debug")
	t.Setenv("DISKWATCHER_CATALOG_PATH", "/tmp/custom.db")
	t.Setenv("DISKWATCHER_RUN_AUTO_SCAN", "false")
	t.Setenv("DISKWATCHER_RUN_EXCLUDE_PATTERNS", "**/*.tmp,node_modules")
	t.Setenv("DISKWATCHER_RUN_POLLING_INTERVAL", "500ms")
	t.Setenv("DISKWATCHER_RETENTION_ENABLED", "true")
	t.Setenv("DISKWATCHER_RUN_MAX_SCAN_WORKERS", "4")

	cfg := Load()
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "/tmp/custom.db", cfg.Catalog.Path)
	require.False(t, cfg.Run.AutoScan)
	require.Equal(t, []string{"**/*.tmp", "node_modules"}, cfg.Run.ExcludePatterns)
	require.Equal(t, 500*time.Millisecond, cfg.Run.PollingInterval)
	require.True(t, cfg.Retention.Enabled)
	require.Equal(t, 4, cfg.Run.MaxScanWorkers)
}

func TestGetDurationEnvAcceptsBareSeconds(t *testing.T) {
	t.Setenv("DISKWATCHER_CATALOG_BUSY_TIMEOUT", "30")
	cfg := Load()
	require.Equal(t, 30*time.Second, cfg.Catalog.BusyTimeout)
}

func TestConfigDirReadsEnv(t *testing.T) {
	require.Equal(t, "", ConfigDir())
	t.Setenv("DISKWATCHER_CONFIG_DIR", "/etc/diskwatcher")
	require.Equal(t, "/etc/diskwatcher", ConfigDir())
}

func TestConfigDirOverridesCatalogAndLogDefaults(t *testing.T) {
	t.Setenv("DISKWATCHER_CONFIG_DIR", "/etc/diskwatcher")

	cfg := Load()
	require.Equal(t, "/etc/diskwatcher/diskwatcher.db", cfg.Catalog.Path)
	require.Equal(t, "/etc/diskwatcher/diskwatcher.log", cfg.Log.FilePath)
}

func TestConfigDirDoesNotOverrideExplicitPaths(t *testing.T) {
	t.Setenv("DISKWATCHER_CONFIG_DIR", "/etc/diskwatcher")
	t.Setenv("DISKWATCHER_CATALOG_PATH", "/var/lib/diskwatcher/custom.db")
	t.Setenv("DISKWATCHER_LOG_FILE", "/var/log/diskwatcher/custom.log")

	cfg := Load()
	require.Equal(t, "/var/lib/diskwatcher/custom.db", cfg.Catalog.Path)
	require.Equal(t, "/var/log/diskwatcher/custom.log", cfg.Log.FilePath)
}

func TestConfigDirUnsetLeavesLogFilePathEmpty(t *testing.T) {
	cfg := Load()
	require.Empty(t, cfg.Log.FilePath)
	require.Equal(t, "./diskwatcher.db", cfg.Catalog.Path)
}
