package watcher

import (
	"errors"
	"strings"
	"syscall"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

// isWatchExhausted reports whether err represents the kernel-native
// backend's watch-descriptor pool being exhausted (ENOSPC), the one
// condition spec.md §4.4 says should trigger polling fallback.
func isWatchExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no space left on device")
}

// newScanError wraps an I/O error encountered for one path during the
// initial archival scan. Scan errors are non-fatal; callers record and
// continue (spec.md §4.8).
func newScanError(path string, err error) error {
	return &diskerrors.ScanError{Path: path, Err: err}
}
