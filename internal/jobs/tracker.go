// Package jobs implements the Job Tracker component (spec.md §4.3): it
// creates, heartbeats, completes, and fails Job records, and cleans up
// jobs left behind by a crashed owner process at startup.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/asalt/diskwatcher/internal/catalog"
	"github.com/asalt/diskwatcher/internal/diskerrors"
)

// Tracker is constructed once per supervisor and shared by every watcher;
// job handles it mints are values (spec.md §9: "JobHandle is (connection,
// job_id); passing it across task/process boundaries is safe").
type Tracker struct {
	db *catalog.DB
}

// New returns a Tracker bound to db.
func New(db *catalog.DB) *Tracker { return &Tracker{db: db} }

// StartJob inserts a new queued (or given-status) Job row with a fresh
// 128-bit id and the current process's pid/hostname as owner, and returns
// a handle bound to it.
func (t *Tracker) StartJob(kind string, path, volumeID *string, status string, progress interface{}) (*Handle, error) {
	if status == "" {
		status = catalog.JobQueued
	}
	now := catalog.FormatTime(time.Now())
	host, _ := os.Hostname()
	pid := fmt.Sprintf("%d", os.Getpid())

	progressJSON, err := marshalProgress(progress)
	if err != nil {
		return nil, diskerrors.WrapError(err, "marshal initial progress")
	}

	j := &catalog.Job{
		JobID:        uuid.New().String(),
		JobType:      kind,
		Path:         path,
		VolumeID:     volumeID,
		Status:       status,
		ProgressJSON: progressJSON,
		OwnerPID:     &pid,
		OwnerHost:    &host,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.db.Jobs().Insert(j); err != nil {
		return nil, err
	}
	return &Handle{db: t.db, job: j}, nil
}

// Attach binds a Handle to an already-created job id, reading its current
// row from t's catalog connection. Mirrors
// original_source/src/diskwatcher/db/jobs.py's JobHandle.attach()
// classmethod: a worker process that did not create the job (the
// Supervisor did, before dispatch) can still drive it to completion
// through its own connection, per spec.md §4.5 and §9's "JobHandle is
// (connection, job_id)" contract.
func (t *Tracker) Attach(jobID string) (*Handle, error) {
	j, err := t.db.Jobs().Get(jobID)
	if err != nil {
		return nil, err
	}
	return &Handle{db: t.db, job: j}, nil
}

// Handle is a mutable view over one Job row; all of its state lives in the
// catalog, so the handle itself can be freely copied or passed around.
type Handle struct {
	db  *catalog.DB
	job *catalog.Job
}

// JobID returns the handle's job id.
func (h *Handle) JobID() string { return h.job.JobID }

// Status returns the last-known status without re-reading the row.
func (h *Handle) Status() string { return h.job.Status }

// Update sets status/progress/error (any of which may be left unset by
// passing zero values) and advances updated_at. Returns JobStateError if
// the job is already terminal.
func (h *Handle) Update(status string, progress interface{}, errMsg string) error {
	if catalog.IsTerminalJobStatus(h.job.Status) {
		return &diskerrors.JobStateError{JobID: h.job.JobID, Status: h.job.Status}
	}
	if status != "" {
		h.job.Status = status
	}
	if progress != nil {
		pj, err := marshalProgress(progress)
		if err != nil {
			return diskerrors.WrapError(err, "marshal progress")
		}
		h.job.ProgressJSON = pj
	}
	if errMsg != "" {
		h.job.ErrorMessage = &errMsg
	}
	h.job.UpdatedAt = catalog.FormatTime(time.Now())
	if catalog.IsTerminalJobStatus(h.job.Status) {
		completedAt := h.job.UpdatedAt
		h.job.CompletedAt = &completedAt
	}
	return h.db.Jobs().Update(h.job)
}

// Heartbeat is Update with only updated_at advancing when no progress is
// given; it never changes status.
func (h *Handle) Heartbeat(progress interface{}) error {
	if catalog.IsTerminalJobStatus(h.job.Status) {
		return &diskerrors.JobStateError{JobID: h.job.JobID, Status: h.job.Status}
	}
	return h.Update(h.job.Status, progress, "")
}

// Complete transitions the job to status (default "complete") with final
// progress.
func (h *Handle) Complete(status string, progress interface{}) error {
	if status == "" {
		status = catalog.JobComplete
	}
	return h.Update(status, progress, "")
}

// Fail transitions the job to "failed" recording err's message.
func (h *Handle) Fail(err error, progress interface{}) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return h.Update(catalog.JobFailed, progress, msg)
}

func marshalProgress(progress interface{}) (*string, error) {
	if progress == nil {
		return nil, nil
	}
	b, err := json.Marshal(progress)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// CleanupStaleJobs marks any non-terminal job whose owner pid is not a
// live process (or whose host differs from the current host) as stale,
// per spec.md §4.3 and scenario S6. Run once at supervisor startup.
func (t *Tracker) CleanupStaleJobs() (int, error) {
	currentHost, _ := os.Hostname()
	jobs, err := t.db.Jobs().List(catalog.ListFilter{IncludeFinished: false})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, j := range jobs {
		alive := false
		if j.OwnerHost != nil && *j.OwnerHost == currentHost && j.OwnerPID != nil {
			if pid, err := parsePID(*j.OwnerPID); err == nil {
				if ok, _ := process.PidExists(pid); ok {
					alive = true
				}
			}
		}
		if alive {
			continue
		}
		now := catalog.FormatTime(time.Now())
		j.Status = catalog.JobStale
		j.CompletedAt = &now
		j.UpdatedAt = now
		if err := t.db.Jobs().Update(j); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func parsePID(s string) (int32, error) {
	var pid int32
	_, err := fmt.Sscanf(s, "%d", &pid)
	return pid, err
}
