package mountprobe

import (
	"bufio"
	"os"
)

// HostMountSet reports which directories are current mount points of the
// host, read from /proc/mounts on Linux. Used by the Auto-Discovery Loop
// (spec.md §4.6) to retain only genuinely mounted children.
type HostMountSet struct {
	points map[string]bool
}

// NewHostMountSet reads the current mount table. On platforms without
// /proc/mounts it returns an empty set, so IsMountPoint reports false for
// every path; callers on such platforms should supply a different
// MountSet implementation.
func NewHostMountSet() *HostMountSet {
	points := map[string]bool{}
	f, err := os.Open("/proc/mounts")
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fields := splitFields(scanner.Text())
			if len(fields) >= 2 {
				points[fields[1]] = true
			}
		}
	}
	return &HostMountSet{points: points}
}

// IsMountPoint reports whether path is currently mounted.
func (h *HostMountSet) IsMountPoint(path string) bool {
	return h.points[path]
}

func splitFields(line string) []string {
	var fields []string
	start := -1
	for i, r := range line {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}
