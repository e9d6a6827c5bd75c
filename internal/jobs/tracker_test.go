package jobs

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asalt/diskwatcher/internal/catalog"
)

func openTestDB(t *testing.T) *catalog.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := catalog.Open(catalog.DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStartJobDefaultsToQueued(t *testing.T) {
	db := openTestDB(t)
	tr := New(db)

	h, err := tr.StartJob(catalog.JobKindInitialScan, nil, nil, "", nil)
	require.NoError(t, err)
	require.Equal(t, catalog.JobQueued, h.Status())
	require.NotEmpty(t, h.JobID())
}

func TestHandleUpdateThenComplete(t *testing.T) {
	db := openTestDB(t)
	tr := New(db)

	h, err := tr.StartJob(catalog.JobKindInitialScan, nil, nil, catalog.JobRunning, nil)
	require.NoError(t, err)

	require.NoError(t, h.Heartbeat(map[string]int{"files_scanned": 10}))
	require.NoError(t, h.Complete("", map[string]int{"files_scanned": 42}))
	require.Equal(t, catalog.JobComplete, h.Status())

	got, err := db.Jobs().Get(h.JobID())
	require.NoError(t, err)
	require.Equal(t, catalog.JobComplete, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestHandleUpdateRejectedAfterTerminal(t *testing.T) {
	db := openTestDB(t)
	tr := New(db)

	h, err := tr.StartJob(catalog.JobKindInitialScan, nil, nil, catalog.JobRunning, nil)
	require.NoError(t, err)
	require.NoError(t, h.Fail(nil, nil))

	err = h.Heartbeat(nil)
	require.Error(t, err)
}

func TestFailRecordsErrorMessage(t *testing.T) {
	db := openTestDB(t)
	tr := New(db)

	h, err := tr.StartJob(catalog.JobKindWatcher, nil, nil, catalog.JobRunning, nil)
	require.NoError(t, err)
	require.NoError(t, h.Fail(os.ErrNotExist, nil))

	got, err := db.Jobs().Get(h.JobID())
	require.NoError(t, err)
	require.Equal(t, catalog.JobFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
}

func TestCleanupStaleJobsMarksDeadOwnerStale(t *testing.T) {
	db := openTestDB(t)
	tr := New(db)

	host, _ := os.Hostname()
	deadPID := "999999999" // astronomically unlikely to be a live pid
	job := &catalog.Job{
		JobID:     "dead-job",
		JobType:   catalog.JobKindInitialScan,
		Status:    catalog.JobRunning,
		OwnerPID:  &deadPID,
		OwnerHost: &host,
		StartedAt: catalog.FormatTime(time.Now()),
		UpdatedAt: catalog.FormatTime(time.Now()),
	}
	require.NoError(t, db.Jobs().Insert(job))

	n, err := tr.CleanupStaleJobs()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := db.Jobs().Get("dead-job")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStale, got.Status)
}

func TestCleanupStaleJobsLeavesLiveOwnerAlone(t *testing.T) {
	db := openTestDB(t)
	tr := New(db)

	host, _ := os.Hostname()
	selfPID := strconv.Itoa(os.Getpid())
	job := &catalog.Job{
		JobID:     "live-job",
		JobType:   catalog.JobKindInitialScan,
		Status:    catalog.JobRunning,
		OwnerPID:  &selfPID,
		OwnerHost: &host,
		StartedAt: catalog.FormatTime(time.Now()),
		UpdatedAt: catalog.FormatTime(time.Now()),
	}
	require.NoError(t, db.Jobs().Insert(job))

	n, err := tr.CleanupStaleJobs()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	got, err := db.Jobs().Get("live-job")
	require.NoError(t, err)
	require.Equal(t, catalog.JobRunning, got.Status)
}
