package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asalt/diskwatcher/internal/catalog"
	"github.com/asalt/diskwatcher/internal/jobs"
	"github.com/asalt/diskwatcher/internal/supervisor"
)

// allMounted treats every resolved path as a mount point, so discovery
// tests don't depend on /proc/mounts contents.
type allMounted struct{}

func (allMounted) IsMountPoint(string) bool { return true }

func newTestSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := catalog.Open(catalog.DefaultConfig(dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return supervisor.New(supervisor.Config{}, db, jobs.New(db))
}

func TestScanOnceAddsNewlyDiscoveredChildren(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "child-a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "child-b"), 0o755))

	super := newTestSupervisor(t)
	loop := New(Config{Roots: []string{root}}, super, allMounted{})

	require.NoError(t, loop.ScanOnce(context.Background()))
	require.Len(t, super.CurrentPaths(), 2)
}

func TestScanOnceRemovesVanishedChild(t *testing.T) {
	root := t.TempDir()
	childPath := filepath.Join(root, "child-a")
	require.NoError(t, os.Mkdir(childPath, 0o755))

	super := newTestSupervisor(t)
	loop := New(Config{Roots: []string{root}}, super, allMounted{})
	require.NoError(t, loop.ScanOnce(context.Background()))
	require.Len(t, super.CurrentPaths(), 1)

	require.NoError(t, os.RemoveAll(childPath))
	require.NoError(t, loop.ScanOnce(context.Background()))
	require.Empty(t, super.CurrentPaths())
}

func TestScanOnceIgnoresNonMountedChildren(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "child-a"), 0o755))

	super := newTestSupervisor(t)
	loop := New(Config{Roots: []string{root}}, super, mountSetFunc(func(string) bool { return false }))

	require.NoError(t, loop.ScanOnce(context.Background()))
	require.Empty(t, super.CurrentPaths())
}

type mountSetFunc func(string) bool

func (f mountSetFunc) IsMountPoint(p string) bool { return f(p) }

func TestNewClampsIntervalMinimum(t *testing.T) {
	super := newTestSupervisor(t)
	loop := New(Config{Interval: 10 * time.Millisecond}, super, allMounted{})
	require.Equal(t, 5*time.Second, loop.cfg.Interval)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	super := newTestSupervisor(t)
	loop := New(Config{}, super, allMounted{})
	loop.Stop() // must not panic or block
}
