// Package discovery implements the Auto-Discovery Loop component (spec.md
// §4.6): periodically enumerates configured roots for newly mounted child
// directories, adds/removes watchers to match reality, and kicks off
// scans for new arrivals. Grounded directly on
// internal/events/reconciler.go's ReconcileVolumes — build two maps, diff,
// add what's new, remove what's gone, log counts — generalized from
// "Docker volume names" to "resolved directory paths."
package discovery

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/asalt/diskwatcher/internal/supervisor"
)

// MountSet reports which directories are currently mount points of the
// host; the supervisor's live watcher set is reconciled against it.
// Grounded on internal/mountprobe's /proc/mounts-backed HostMountSet.
type MountSet interface {
	IsMountPoint(path string) bool
}

// Config configures the loop.
type Config struct {
	Roots        []string
	ScanNew      bool
	Interval     time.Duration // default 5s; values under 1s fall back to the default
	ScanParallel bool
}

// Loop is the Auto-Discovery Loop. It holds a reference to the Supervisor
// to add/remove watchers; the Supervisor does not hold a reference back —
// per spec.md §9's "model as two independently owned values exchanging
// commands" note, no ownership cycle is needed.
type Loop struct {
	cfg   Config
	super *supervisor.Supervisor
	mounts MountSet

	mu         sync.Mutex
	trackedAuto map[string]bool // paths this loop itself added

	stop chan struct{}
	done chan struct{}
}

// New constructs a Loop bound to super.
func New(cfg Config, super *supervisor.Supervisor, mounts MountSet) *Loop {
	if cfg.Interval < time.Second {
		cfg.Interval = 5 * time.Second
	}
	return &Loop{cfg: cfg, super: super, mounts: mounts, trackedAuto: map[string]bool{}}
}

// ScanOnce primes the watcher set: currently mounted children under the
// configured roots are attached before the Supervisor's main loop runs.
func (l *Loop) ScanOnce(ctx context.Context) error {
	discovered := l.discoverChildren()
	currentlyWatched := make(map[string]bool)
	for _, p := range l.super.CurrentPaths() {
		currentlyWatched[p] = true
	}

	l.mu.Lock()
	tracked := make(map[string]bool, len(l.trackedAuto))
	for p := range l.trackedAuto {
		tracked[p] = true
	}
	l.mu.Unlock()

	var added []string
	for path := range discovered {
		if currentlyWatched[path] {
			continue
		}
		if _, err := l.super.AddDirectory(path, ""); err != nil {
			log.Printf("[WARN] discovery: AddDirectory(%s) failed: %v", path, err)
			continue
		}
		l.mu.Lock()
		l.trackedAuto[path] = true
		l.mu.Unlock()
		added = append(added, path)
	}

	var removed []string
	for path := range tracked {
		if !discovered[path] {
			if err := l.super.RemoveDirectory(path); err != nil {
				log.Printf("[WARN] discovery: RemoveDirectory(%s) failed: %v", path, err)
				continue
			}
			l.mu.Lock()
			delete(l.trackedAuto, path)
			l.mu.Unlock()
			removed = append(removed, path)
		}
	}

	if len(added) > 0 || len(removed) > 0 {
		log.Printf("[INFO] discovery: +%d -%d watchers (added=%v removed=%v)", len(added), len(removed), added, removed)
	}

	if l.cfg.ScanNew && len(added) > 0 {
		if _, err := l.super.RunInitialScans(ctx, supervisor.ScanTarget{
			Parallel: l.cfg.ScanParallel && len(added) > 1,
			Subset:   added,
		}); err != nil {
			log.Printf("[WARN] discovery: initial scan of new arrivals failed: %v", err)
		}
	}
	// If the supervisor is already running live watchers, AddDirectory
	// above already started each new watcher's live loop immediately, so
	// scans and live watching overlap per spec.md §4.6.
	return nil
}

// Start runs ScanOnce once, then loops on cfg.Interval until Stop is
// called. Errors during one cycle are logged and the loop continues.
func (l *Loop) Start(ctx context.Context) {
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	if err := l.ScanOnce(ctx); err != nil {
		log.Printf("[WARN] discovery: priming scan_once failed: %v", err)
	}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.ScanOnce(ctx); err != nil {
					log.Printf("[WARN] discovery: cycle failed: %v", err)
				}
			}
		}
	}()
}

// Stop signals the loop to exit at its next wake and waits for it.
func (l *Loop) Stop() {
	if l.stop == nil {
		return
	}
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	if l.done != nil {
		<-l.done
	}
}

// discoverChildren enumerates each configured root's immediate child
// directories, resolves each, and retains only those that are current
// mount points of the host.
func (l *Loop) discoverChildren() map[string]bool {
	discovered := map[string]bool{}
	for _, root := range l.cfg.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			log.Printf("[WARN] discovery: cannot read root %s: %v", root, err)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			child := filepath.Join(root, entry.Name())
			resolved, err := filepath.EvalSymlinks(child)
			if err != nil {
				resolved = child
			}
			if l.mounts == nil || l.mounts.IsMountPoint(resolved) {
				discovered[resolved] = true
			}
		}
	}
	return discovered
}
