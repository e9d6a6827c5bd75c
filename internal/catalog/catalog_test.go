package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesSchema(t *testing.T) {
	db := openTestDB(t)
	var name string
	err := db.Reader().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='events'`).Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "events", name)
}

func TestAppendEventInsertsVolumeAndFile(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	err := db.AppendEvent(EventCreated, path, dir, "vol-1", "123", time.Now(), nil, nil)
	require.NoError(t, err)

	vols, err := db.SummarizeByVolume()
	require.NoError(t, err)
	require.Len(t, vols, 1)
	require.Equal(t, "vol-1", vols[0].VolumeID)
	require.Equal(t, int64(1), vols[0].EventCount)
	require.Equal(t, int64(1), vols[0].CreatedCount)

	events, err := db.QueryEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventCreated, events[0].Kind)
}

func TestAppendEventSkipsDeniedFiles(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".DS_Store")

	err := db.AppendEvent(EventExisting, path, dir, "vol-1", "1", time.Now(), nil, nil)
	require.NoError(t, err)

	files, err := db.SummarizeFiles(10)
	require.NoError(t, err)
	require.Empty(t, files)

	events, err := db.QueryEvents(10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestAppendEventTombstonesDeletedFile(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "b.txt")

	require.NoError(t, db.AppendEvent(EventExisting, path, dir, "vol-1", "1", time.Now(), nil, nil))
	require.NoError(t, db.AppendEvent(EventDeleted, path, dir, "vol-1", "1", time.Now(), nil, nil))

	files, err := db.SummarizeFiles(10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.True(t, files[0].IsDeleted)
}

func TestIsDenied(t *testing.T) {
	require.True(t, IsDenied(".DS_Store"))
	require.True(t, IsDenied("Thumbs.db"))
	require.True(t, IsDenied("foo.tmp"))
	require.True(t, IsDenied("foo~"))
	require.False(t, IsDenied("regular.txt"))
}

func TestIsTerminalJobStatus(t *testing.T) {
	require.True(t, IsTerminalJobStatus(JobComplete))
	require.True(t, IsTerminalJobStatus(JobFailed))
	require.False(t, IsTerminalJobStatus(JobStopping))
	require.False(t, IsTerminalJobStatus(JobRunning))
}

func TestJobsInsertGetUpdate(t *testing.T) {
	db := openTestDB(t)
	now := FormatTime(time.Now())
	j := &Job{
		JobID:     "job-1",
		JobType:   JobKindInitialScan,
		Status:    JobRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Jobs().Insert(j))

	got, err := db.Jobs().Get("job-1")
	require.NoError(t, err)
	require.Equal(t, JobRunning, got.Status)

	got.Status = JobComplete
	got.UpdatedAt = FormatTime(time.Now())
	require.NoError(t, db.Jobs().Update(got))

	got2, err := db.Jobs().Get("job-1")
	require.NoError(t, err)
	require.Equal(t, JobComplete, got2.Status)
}

func TestJobsGetNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Jobs().Get("does-not-exist")
	require.Error(t, err)
}

func TestQueryEventsSinceIsAscendingAndExclusive(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, db.AppendEvent(EventExisting, filepath.Join(dir, "f"), dir, "vol-1", "1", time.Now(), nil, nil))
	}

	all, err := db.QueryEvents(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// QueryEvents orders newest-first: all[0] is the highest id.
	newest, oldest := all[0].ID, all[2].ID

	since, err := db.QueryEventsSince(newest, 10)
	require.NoError(t, err)
	require.Empty(t, since)

	since, err = db.QueryEventsSince(oldest, 10)
	require.NoError(t, err)
	require.Len(t, since, 2)
	require.True(t, since[0].ID < since[1].ID)
}
