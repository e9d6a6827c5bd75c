// Package watcher implements the Directory Watcher component (spec.md
// §4.4): per-directory event source translating kernel notifications (or
// polling) and an initial archival scan into catalog writes.
package watcher

import "time"

// RawKind is the backend-level event kind, mapped onto catalog event
// kinds by the caller.
type RawKind int

const (
	RawCreated RawKind = iota
	RawModified
	RawDeleted
)

// RawEvent is what a Backend reports for one filesystem notification.
type RawEvent struct {
	Kind RawKind
	Path string
}

// Backend is the polymorphic notification-backend capability spec.md §9
// calls for: {subscribe(path, recursive), receive() -> event, close()}.
// Variants are kernel-native (fsnotify) and polling; selection is by
// construction-time error, never runtime type inspection. Grounded on the
// teacher's ScanMethod interface idiom generalized from pluggable scan
// methods to pluggable notification backends.
type Backend interface {
	// Subscribe begins watching root (recursively). Must be called once,
	// before Receive.
	Subscribe(root string) error
	// Receive blocks until the next event or an unrecoverable error.
	Receive() (RawEvent, error)
	// Close releases backend resources; safe to call more than once.
	Close() error
	// Name identifies the backend for logging ("inotify", "polling").
	Name() string
}

// NewBackend constructs the kernel-native backend, falling back to
// polling on watch-descriptor exhaustion (ENOSPC), per spec.md §4.4.
func NewBackend(root string, pollInterval time.Duration) (Backend, error) {
	b, err := newInotifyBackend()
	if err == nil {
		if subErr := b.Subscribe(root); subErr == nil {
			return b, nil
		} else {
			b.Close()
			err = subErr
		}
	}
	if isWatchExhausted(err) {
		pb := newPollingBackend(pollInterval)
		if subErr := pb.Subscribe(root); subErr != nil {
			return nil, subErr
		}
		return pb, nil
	}
	return nil, err
}
