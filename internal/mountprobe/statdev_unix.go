//go:build unix

package mountprobe

import (
	"os"
	"syscall"
)

// statDev extracts the device number from a *nix Stat_t so
// filesystemAnchor can detect mount-point crossings.
func statDev(fi os.FileInfo) (uint64, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}
