// Package diskutil provides filesystem capacity snapshots for the
// Catalog Store's volume usage refresh (spec.md §4.1), wrapping
// gopsutil/v4's disk package rather than shelling out to df, since the
// teacher's own CleanupStaleJobs-equivalent liveness check already
// pulls in gopsutil/v4/process for the same reason: a pure-Go,
// cross-platform primitive over a parsed shell command.
package diskutil

import (
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/asalt/diskwatcher/internal/catalog"
)

// Usage returns a capacity snapshot for the filesystem mounted at path.
// It is meant to be passed as the capacity callback to
// catalog.DB.AppendEvent, invoked lazily only when a refresh is due.
func Usage(path string) (*catalog.CapacitySnapshot, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	return &catalog.CapacitySnapshot{
		TotalBytes: int64(u.Total),
		UsedBytes:  int64(u.Used),
		FreeBytes:  int64(u.Free),
	}, nil
}

// CapacityFunc returns a closure suitable for catalog.DB.AppendEvent's
// capacity parameter, bound to a fixed path so callers don't need to
// thread the mount point through the event pipeline themselves.
func CapacityFunc(path string) func() (*catalog.CapacitySnapshot, error) {
	return func() (*catalog.CapacitySnapshot, error) {
		return Usage(path)
	}
}
