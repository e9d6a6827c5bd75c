package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asalt/diskwatcher/internal/catalog"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanAppendsExistingForEveryFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"))
	writeFile(t, filepath.Join(root, "sub", "b.txt"))

	var appended []string
	appendFn := func(kind, path, directory, volumeID string) error {
		require.Equal(t, catalog.EventExisting, kind)
		appended = append(appended, path)
		return nil
	}

	res, err := Scan(context.Background(), root, "vol-1", nil, appendFn, nil)
	require.NoError(t, err)
	require.Equal(t, catalog.JobComplete, res.Status)
	require.Equal(t, 2, res.FilesScanned)
	require.Len(t, appended, 2)
}

func TestScanPrunesExcludedDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"))
	writeFile(t, filepath.Join(root, "node_modules", "dep.js"))

	excludes := NewExcludeSet([]string{"node_modules"})

	var appended []string
	appendFn := func(kind, path, directory, volumeID string) error {
		appended = append(appended, path)
		return nil
	}

	res, err := Scan(context.Background(), root, "vol-1", excludes, appendFn, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesScanned)
	require.Len(t, appended, 1)
	require.Contains(t, appended[0], "keep.txt")
}

func TestScanInterruptedByCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	appendFn := func(kind, path, directory, volumeID string) error { return nil }

	res, err := Scan(ctx, root, "vol-1", nil, appendFn, nil)
	require.NoError(t, err)
	require.Equal(t, catalog.JobInterrupted, res.Status)
}

func TestScanHeartbeatFiresAtEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"))

	var calls int
	hb := func(p ScanProgress) { calls++ }
	appendFn := func(kind, path, directory, volumeID string) error { return nil }

	_, err := Scan(context.Background(), root, "vol-1", nil, appendFn, hb)
	require.NoError(t, err)
	require.Equal(t, 1, calls) // final heartbeat, since 1 file never hits the 500 threshold
}
