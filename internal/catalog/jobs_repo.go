package catalog

import (
	"database/sql"
	"fmt"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

// jobsRepo is the low-level persistence layer for Job rows; the Job
// Tracker component (internal/jobs) builds its StartJob/Update/Heartbeat/
// Complete/Fail/CleanupStaleJobs behavior on top of this CRUD surface.
// Grounded on internal/database/scan_job_repository.go.
type jobsRepo struct{ baseRepository }

// Jobs returns the jobs sub-repository bound to this catalog DB.
func (db *DB) Jobs() *jobsRepo { return &jobsRepo{baseRepository{db: db}} }

func (r *jobsRepo) Insert(j *Job) error {
	r.db.Lock()
	defer r.db.Unlock()
	return withRetry(func() error {
		_, err := r.exec().Exec(
			`INSERT INTO jobs (job_id, job_type, path, volume_id, status, progress_json,
			                   owner_pid, owner_host, error_message, started_at, updated_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.JobID, j.JobType, j.Path, j.VolumeID, j.Status, j.ProgressJSON,
			j.OwnerPID, j.OwnerHost, j.ErrorMessage, j.StartedAt, j.UpdatedAt, j.CompletedAt,
		)
		if err != nil {
			return &diskerrors.CatalogWriteError{Op: "jobs.insert", Err: err}
		}
		return nil
	})
}

// Update persists a full Job row overwrite, used by every status
// transition (Update/Heartbeat/Complete/Fail). Callers are responsible for
// enforcing the terminal-state rule (JobStateError) before calling this.
func (r *jobsRepo) Update(j *Job) error {
	r.db.Lock()
	defer r.db.Unlock()
	return withRetry(func() error {
		_, err := r.exec().Exec(
			`UPDATE jobs SET status=?, progress_json=?, error_message=?, updated_at=?, completed_at=?
			 WHERE job_id=?`,
			j.Status, j.ProgressJSON, j.ErrorMessage, j.UpdatedAt, j.CompletedAt, j.JobID,
		)
		if err != nil {
			return &diskerrors.CatalogWriteError{Op: "jobs.update", Err: err}
		}
		return nil
	})
}

func (r *jobsRepo) Get(jobID string) (*Job, error) {
	row := r.read().QueryRow(
		`SELECT job_id, job_type, path, volume_id, status, progress_json,
		        owner_pid, owner_host, error_message, started_at, updated_at, completed_at
		 FROM jobs WHERE job_id=?`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, diskerrors.ErrNotFound
		}
		return nil, &diskerrors.CatalogReadError{Op: "jobs.get", Err: err}
	}
	return j, nil
}

// ListFilter narrows FetchJobs/CleanupStaleJobs queries.
type ListFilter struct {
	IncludeFinished bool
	Limit           int
	StatusIn        []string
	NotStatusIn     []string
}

func (r *jobsRepo) List(f ListFilter) ([]*Job, error) {
	query := `SELECT job_id, job_type, path, volume_id, status, progress_json,
	                  owner_pid, owner_host, error_message, started_at, updated_at, completed_at
	           FROM jobs`
	var where []string
	var args []interface{}

	if !f.IncludeFinished && len(f.StatusIn) == 0 {
		where = append(where, "completed_at IS NULL")
	}
	if len(f.StatusIn) > 0 {
		ph := placeholders(len(f.StatusIn))
		where = append(where, fmt.Sprintf("status IN (%s)", ph))
		for _, s := range f.StatusIn {
			args = append(args, s)
		}
	}
	if len(f.NotStatusIn) > 0 {
		ph := placeholders(len(f.NotStatusIn))
		where = append(where, fmt.Sprintf("status NOT IN (%s)", ph))
		for _, s := range f.NotStatusIn {
			args = append(args, s)
		}
	}
	if len(where) > 0 {
		query += " WHERE " + joinAnd(where)
	}
	query += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.read().Query(query, args...)
	if err != nil {
		return nil, &diskerrors.CatalogReadError{Op: "jobs.list", Err: err}
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, &diskerrors.CatalogReadError{Op: "jobs.list.scan", Err: err}
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row *sql.Row) (*Job, error)   { return scanJobAny(row) }
func scanJobRows(r *sql.Rows) (*Job, error) { return scanJobAny(r) }

func scanJobAny(s rowScanner) (*Job, error) {
	var j Job
	err := s.Scan(&j.JobID, &j.JobType, &j.Path, &j.VolumeID, &j.Status, &j.ProgressJSON,
		&j.OwnerPID, &j.OwnerHost, &j.ErrorMessage, &j.StartedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func joinAnd(clauses []string) string {
	s := ""
	for i, c := range clauses {
		if i > 0 {
			s += " AND "
		}
		s += c
	}
	return s
}
