package watcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTakeSnapshotCapturesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"))

	snap, err := takeSnapshot(root)
	require.NoError(t, err)
	require.Len(t, snap, 1)
}

func TestDiffSnapshotsDetectsCreateModifyDelete(t *testing.T) {
	base := time.Now()
	prev := map[string]snapshotEntry{
		"a": {modTime: base, size: 10}, // will be deleted
		"b": {modTime: base, size: 20}, // will be modified
		"d": {modTime: base, size: 1},  // unchanged
	}
	cur := map[string]snapshotEntry{
		"b": {modTime: base.Add(time.Second), size: 25},
		"c": {modTime: base, size: 5}, // newly created
		"d": {modTime: base, size: 1},
	}

	events := diffSnapshots(prev, cur)
	kinds := map[string]RawKind{}
	for _, e := range events {
		kinds[e.Path] = e.Kind
	}

	require.Equal(t, RawModified, kinds["b"])
	require.Equal(t, RawCreated, kinds["c"])
	require.Equal(t, RawDeleted, kinds["a"])
	require.NotContains(t, kinds, "d")
}

func TestNewPollingBackendClampsInterval(t *testing.T) {
	b := newPollingBackend(10 * time.Millisecond)
	require.Equal(t, 30*time.Second, b.interval)

	b2 := newPollingBackend(5 * time.Second)
	require.Equal(t, 5*time.Second, b2.interval)
}

func TestPollingBackendCloseIsIdempotent(t *testing.T) {
	b := newPollingBackend(time.Second)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
