package catalog

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestUpsertVolumeCapacityRefreshPolicy drives all three independent
// triggers of spec.md §8 property 4: no prior refresh, >=300s elapsed
// since the last refresh, and events_since_refresh reaching 100.
func TestUpsertVolumeCapacityRefreshPolicy(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	volID := "vol-refresh"

	var calls int
	snapshot := func() (*CapacitySnapshot, error) {
		calls++
		return &CapacitySnapshot{TotalBytes: 1000, UsedBytes: 100, FreeBytes: 900}, nil
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Trigger 1: no usage_refreshed_at yet forces a refresh on the volume's
	// very first event.
	require.NoError(t, db.AppendEvent(EventExisting, filepath.Join(dir, "f0.txt"), dir, volID, "1", base, nil, snapshot))
	require.Equal(t, 1, calls)

	vols, err := db.SummarizeByVolume()
	require.NoError(t, err)
	require.Len(t, vols, 1)
	require.NotNil(t, vols[0].UsageRefreshedAt)
	require.EqualValues(t, 0, vols[0].EventsSinceRefresh)

	// Neither trigger fires yet: short elapsed time, low event count.
	t2 := base.Add(10 * time.Second)
	require.NoError(t, db.AppendEvent(EventExisting, filepath.Join(dir, "f1.txt"), dir, volID, "1", t2, nil, snapshot))
	require.Equal(t, 1, calls)

	// Trigger 2: >=300s elapsed since the last refresh forces one even
	// though events_since_refresh is still low (1).
	t3 := t2.Add(301 * time.Second)
	require.NoError(t, db.AppendEvent(EventExisting, filepath.Join(dir, "f2.txt"), dir, volID, "1", t3, nil, snapshot))
	require.Equal(t, 2, calls)

	vols, err = db.SummarizeByVolume()
	require.NoError(t, err)
	require.EqualValues(t, 0, vols[0].EventsSinceRefresh)

	// Trigger 3: events_since_refresh reaching 100 forces a refresh even
	// with each event only a second apart (no elapsed-time trigger).
	cursor := t3
	for i := 0; i < 100; i++ {
		cursor = cursor.Add(time.Second)
		path := filepath.Join(dir, fmt.Sprintf("g%d.txt", i))
		require.NoError(t, db.AppendEvent(EventExisting, path, dir, volID, "1", cursor, nil, snapshot))
	}
	require.Equal(t, 3, calls)

	vols, err = db.SummarizeByVolume()
	require.NoError(t, err)
	require.EqualValues(t, 0, vols[0].EventsSinceRefresh)
}
