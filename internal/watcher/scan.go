package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/asalt/diskwatcher/internal/catalog"
)

// ScanProgress is the JSON shape a scan job's progress column holds,
// matching SPEC_FULL.md §3's concrete payload for initial_scan jobs.
type ScanProgress struct {
	FilesScanned    int `json:"files_scanned"`
	DirectoriesSeen int `json:"directories_seen"`
}

// ScanResult is the final per-target record spec.md §4.5's
// RunInitialScans returns.
type ScanResult struct {
	Status          string // "complete" or "interrupted"
	FilesScanned    int
	DirectoriesSeen int
	StartedAt       time.Time
	CompletedAt     time.Time
}

// heartbeat is called every 500 files with cumulative counts, and once
// more at the end with the final counts.
type heartbeat func(progress ScanProgress)

// appendFn is the subset of *catalog.DB the scan needs, so tests can stub
// it without a real catalog.
type appendFn func(kind, path, directory, volumeID string) error

// Scan walks the tree rooted at root, filtering by excludes, and calls
// appendEvent("existing", ...) for every live file. Grounded on the
// teacher's NativeMethod.Scan (filepath-based walk with periodic progress
// callbacks), generalized from "compute totals" to "append existing
// events," and specialized to spec.md §4.4's exact semantics:
//   - a directory matching an exclude is skipped entirely (pruned)
//   - a file matching an exclude is skipped
//   - progress heartbeats every 500 files
//   - cooperative cancellation between directories yields "interrupted"
func Scan(ctx context.Context, root, volumeID string, excludes *ExcludeSet, append appendFn, hb heartbeat) (*ScanResult, error) {
	result := &ScanResult{StartedAt: time.Now()}
	filesScanned := 0
	dirsSeen := 0
	interrupted := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // per-subtree I/O errors are skipped, not fatal (spec.md §4.8)
		}

		select {
		case <-ctx.Done():
			interrupted = true
			return filepath.SkipAll
		default:
		}

		if d.IsDir() {
			if path != root && excludes != nil && excludes.Matches(path) {
				return filepath.SkipDir
			}
			dirsSeen++
			return nil
		}

		if excludes != nil && excludes.Matches(path) {
			return nil
		}

		if err := append(catalog.EventExisting, path, filepath.Dir(path), volumeID); err != nil {
			// a single failed append is logged by the caller; scan continues.
			return nil
		}
		filesScanned++

		if filesScanned%500 == 0 && hb != nil {
			hb(ScanProgress{FilesScanned: filesScanned, DirectoriesSeen: dirsSeen})
		}
		return nil
	})

	result.FilesScanned = filesScanned
	result.DirectoriesSeen = dirsSeen
	result.CompletedAt = time.Now()
	if interrupted {
		result.Status = catalog.JobInterrupted
	} else {
		result.Status = catalog.JobComplete
	}
	if hb != nil {
		hb(ScanProgress{FilesScanned: filesScanned, DirectoriesSeen: dirsSeen})
	}
	return result, err
}
