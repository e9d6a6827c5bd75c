// Package progress implements the Progress Monitor component (spec.md
// §4.7): a read-side aggregator that renders initial-scan progress to an
// output stream by polling Job rows. It never mutates — grounded on
// internal/scheduler/types.go's SchedulerStatus polling shape, generalized
// from "push to Prometheus" to "poll and render," since the teacher has
// no pull-based progress reporter of its own.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/asalt/diskwatcher/internal/catalog"
)

// Snapshot is the aggregated view one poll produces.
type Snapshot struct {
	Total        int
	Completed    int
	Running      int
	Failed       int
	FilesScanned int
}

// JobSource is the subset of *catalog.DB the monitor needs.
type JobSource interface {
	FetchJobs(includeFinished bool, limit int) ([]*catalog.Job, error)
}

// Monitor polls jobs of kind initial_scan started at or after batchStarted
// and renders a progress line.
type Monitor struct {
	src           JobSource
	batchStarted  time.Time
	ownerPID      string // optional filter
	interval      time.Duration
	interactive   bool
	out           io.Writer
	bar           *pb.ProgressBar
	lastRender    time.Time
	renderPeriod  time.Duration // throttle for non-interactive mode
}

// Options configures a Monitor.
type Options struct {
	Interval     time.Duration // default 0.5s
	Interactive  bool
	OwnerPID     string
	Out          io.Writer
}

// New constructs a Monitor that only considers jobs started at or after
// now.
func New(src JobSource, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	return &Monitor{
		src:          src,
		batchStarted: time.Now(),
		ownerPID:     opts.OwnerPID,
		interval:     opts.Interval,
		interactive:  opts.Interactive,
		out:          opts.Out,
		renderPeriod: 2 * time.Second,
	}
}

// Poll computes one Snapshot from current job rows.
func (m *Monitor) Poll() (Snapshot, error) {
	jobs, err := m.src.FetchJobs(true, 0)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	for _, j := range jobs {
		if j.JobType != catalog.JobKindInitialScan {
			continue
		}
		started, err := catalog.ParseTime(j.StartedAt)
		if err == nil && started.Before(m.batchStarted) {
			continue
		}
		if m.ownerPID != "" && (j.OwnerPID == nil || *j.OwnerPID != m.ownerPID) {
			continue
		}
		snap.Total++
		switch {
		case catalog.IsTerminalJobStatus(j.Status):
			if j.Status == catalog.JobComplete {
				snap.Completed++
			} else if j.Status == catalog.JobFailed {
				snap.Failed++
			}
		default:
			snap.Running++
		}
		if j.ProgressJSON != nil {
			var p struct {
				FilesScanned int `json:"files_scanned"`
			}
			if err := json.Unmarshal([]byte(*j.ProgressJSON), &p); err == nil {
				snap.FilesScanned += p.FilesScanned
			}
		}
	}
	return snap, nil
}

// Render writes one progress line, interactive (carriage-return overwrite
// via a bar widget) or non-interactive (throttled to once per 2s), per
// spec.md §4.7.
func (m *Monitor) Render(snap Snapshot) {
	if m.interactive {
		if m.bar == nil && snap.Total > 0 {
			m.bar = pb.New(snap.Total)
			m.bar.SetWriter(m.out)
			m.bar.Start()
		}
		if m.bar != nil {
			m.bar.SetTotal(int64(snap.Total))
			m.bar.SetCurrent(int64(snap.Completed + snap.Failed))
		}
		return
	}

	if !m.lastRender.IsZero() && time.Since(m.lastRender) < m.renderPeriod {
		return
	}
	m.lastRender = time.Now()
	fmt.Fprintf(m.out, "[scan] %d/%d complete, %d running, %d failed, %d files scanned\n",
		snap.Completed, snap.Total, snap.Running, snap.Failed, snap.FilesScanned)
}

// Run polls and renders at m.interval until stopCh is closed.
func (m *Monitor) Run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			if m.bar != nil {
				m.bar.Finish()
			}
			return
		case <-ticker.C:
			snap, err := m.Poll()
			if err != nil {
				continue
			}
			m.Render(snap)
		}
	}
}
