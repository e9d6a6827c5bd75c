//go:build !linux

package catalog

import (
	"os"
	"time"
)

// statCtime has no portable ctime field outside Linux's syscall.Stat_t
// layout (BSD/Darwin name it Ctimespec instead of Ctim); callers fall back
// to ModTime, matching internal/mountprobe/statdev_other.go's "false means
// can't determine" convention.
func statCtime(fi os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
