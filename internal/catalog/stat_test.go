package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendEventCreatedTimeComesFromStatNotEventTimestamp(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	// The event timestamp simulates a scan happening well after the file's
	// real ctime, per spec.md §4.1's "stat the path... with size, mtime,
	// ctime" requirement.
	eventTime := time.Now().Add(48 * time.Hour)
	require.NoError(t, db.AppendEvent(EventExisting, path, dir, "vol-1", "1", eventTime, nil, nil))

	files, err := db.SummarizeFiles(10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].CreatedTime)
	require.NotNil(t, files[0].LastEventTime)
	require.NotEqual(t, *files[0].CreatedTime, *files[0].LastEventTime)

	created, err := ParseTime(*files[0].CreatedTime)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), created, time.Minute)
}
