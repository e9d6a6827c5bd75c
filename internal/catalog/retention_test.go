package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetentionPruneEventsRemovesOldRows(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()

	old := time.Now().AddDate(0, 0, -10)
	recent := time.Now()
	require.NoError(t, db.AppendEvent(EventExisting, dir+"/old.txt", dir, "vol-1", "1", old, nil, nil))
	require.NoError(t, db.AppendEvent(EventExisting, dir+"/new.txt", dir, "vol-1", "1", recent, nil, nil))

	svc := NewRetentionService(db, RetentionConfig{EventTTLDays: 5})
	n, err := svc.pruneEvents(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	events, err := db.QueryEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRetentionPruneJobsRemovesOldTerminalRows(t *testing.T) {
	db := openTestDB(t)

	oldTS := FormatTime(time.Now().AddDate(0, 0, -40))
	job := &Job{
		JobID:       "old-job",
		JobType:     JobKindInitialScan,
		Status:      JobComplete,
		StartedAt:   oldTS,
		UpdatedAt:   oldTS,
		CompletedAt: &oldTS,
	}
	require.NoError(t, db.Jobs().Insert(job))

	svc := NewRetentionService(db, RetentionConfig{JobTTLDays: 30})
	n, err := svc.pruneJobs(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = db.Jobs().Get("old-job")
	require.Error(t, err)
}

func TestRetentionServiceDisabledStopsImmediately(t *testing.T) {
	db := openTestDB(t)
	svc := NewRetentionService(db, RetentionConfig{Enabled: false})
	svc.Start()
	svc.Stop() // must not hang
}

func TestRetentionServiceStartStop(t *testing.T) {
	db := openTestDB(t)
	svc := NewRetentionService(db, RetentionConfig{
		Enabled:      true,
		EventTTLDays: 90,
		Interval:     time.Hour,
		InitialDelay: time.Hour, // long enough that Stop arrives before the first runOnce
	})
	svc.Start()
	svc.Stop()
}
