//go:build !unix

package mountprobe

import "os"

// statDev has no portable device-number notion outside *nix; callers treat
// a false return as "can't determine, stop walking up."
func statDev(fi os.FileInfo) (uint64, bool) {
	return 0, false
}
