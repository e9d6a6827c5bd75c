package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/asalt/diskwatcher/internal/catalog"
	"github.com/asalt/diskwatcher/internal/diskerrors"
	"github.com/asalt/diskwatcher/internal/diskutil"
	"github.com/asalt/diskwatcher/internal/jobs"
	"github.com/asalt/diskwatcher/internal/mountprobe"
)

// State is one of the Directory Watcher lifecycle states of spec.md §4.4.
type State string

const (
	StateCreated  State = "created"
	StateScanning State = "scanning"
	StateWatching State = "watching"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Config configures one Watcher instance.
type Config struct {
	Root            string
	VolumeID        string // supplied, or resolved via Mount Probe if empty
	Excludes        *ExcludeSet
	PollingInterval time.Duration
	ProcessID       string
}

// Watcher translates one directory's real-time activity and initial
// contents into catalog writes. Grounded on
// internal/core/services/scanner/volume_scanner.go's cache-check-first and
// error-classification idioms, generalized from "scan a Docker volume" to
// "watch and scan a directory."
type Watcher struct {
	cfg     Config
	db      *catalog.DB
	tracker *jobs.Tracker

	mu    sync.Mutex
	state State

	mount        *mountprobe.MountInfo
	nextReprobe  time.Time
	reprobeDelay time.Duration

	backend Backend
	cancel  context.CancelFunc
	done    chan struct{}

	watcherJob *jobs.Handle
	scanJob    *jobs.Handle
}

// New constructs a Watcher bound to db and tracker and probes the mount
// once; it starts nothing. Call RunScan and/or Start explicitly, mirroring
// spec.md §4.4's "created -> scanning -> watching" progression being
// driven by the Supervisor, not the constructor.
func New(cfg Config, db *catalog.DB, tracker *jobs.Tracker) (*Watcher, error) {
	if cfg.PollingInterval < time.Second {
		cfg.PollingInterval = 30 * time.Second
	}
	if cfg.ProcessID == "" {
		cfg.ProcessID = fmt.Sprintf("%d", os.Getpid())
	}

	w := &Watcher{cfg: cfg, db: db, tracker: tracker, state: StateCreated}

	info, err := mountprobe.Probe(cfg.Root)
	if err != nil {
		log.Printf("[WARN] mount probe failed for %s: %v", cfg.Root, err)
	} else {
		w.mount = info
	}
	if !w.mount.IsComplete() {
		// the first reprobe is due one backoff step after construction.
		w.reprobeDelay = 300 * time.Second
		w.nextReprobe = time.Now().Add(w.reprobeDelay)
	}
	if cfg.VolumeID != "" {
		// caller-supplied id wins; keep the probed metadata for annotation.
		if w.mount != nil {
			w.mount.VolumeID = cfg.VolumeID
		}
	}
	return w, nil
}

// VolumeID returns the effective volume identifier (supplied or probed).
func (w *Watcher) VolumeID() string {
	if w.cfg.VolumeID != "" {
		return w.cfg.VolumeID
	}
	if w.mount != nil {
		return w.mount.VolumeID
	}
	return w.cfg.Root
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// RunScan performs the initial archival scan against the Watcher's own
// catalog connection. Intended to be called by the Supervisor in serial
// mode; it owns its own scan Job via the tracker.
func (w *Watcher) RunScan(ctx context.Context) (*ScanResult, error) {
	w.setState(StateScanning)

	volID := w.VolumeID()
	path := w.cfg.Root
	handle, err := w.tracker.StartJob(catalog.JobKindInitialScan, &path, &volID, catalog.JobRunning, nil)
	if err != nil {
		w.setState(StateFailed)
		return nil, err
	}
	w.mu.Lock()
	w.scanJob = handle
	w.mu.Unlock()

	return w.runScanWith(ctx, w.db, handle)
}

// RunScanOn performs the initial scan against db, attaching to the
// already-created job jobID via tracker instead of starting a new job.
// This is what the Supervisor's worker pool calls (spec.md §4.5): each
// worker opens its own catalog.DB connection against the known on-disk
// path and a Tracker wrapping it, then attaches to the job the Supervisor
// pre-created on the shared connection — mirroring
// original_source/src/diskwatcher/db/jobs.py's JobHandle.attach()
// classmethod, so concurrent scans never share a single *sql.DB.
func (w *Watcher) RunScanOn(ctx context.Context, db *catalog.DB, tracker *jobs.Tracker, jobID string) (*ScanResult, error) {
	w.setState(StateScanning)

	handle, err := tracker.Attach(jobID)
	if err != nil {
		w.setState(StateFailed)
		return nil, err
	}
	w.mu.Lock()
	w.scanJob = handle
	w.mu.Unlock()

	return w.runScanWith(ctx, db, handle)
}

func (w *Watcher) runScanWith(ctx context.Context, db *catalog.DB, handle *jobs.Handle) (*ScanResult, error) {
	volID := w.VolumeID()
	appendEvent := func(kind, p, dir, vol string) error {
		return w.appendEventOn(db, kind, p, dir, vol)
	}
	hb := func(progress ScanProgress) {
		_ = handle.Heartbeat(progress)
	}

	result, walkErr := Scan(ctx, w.cfg.Root, volID, w.cfg.Excludes, appendEvent, hb)
	if walkErr != nil && result.Status != catalog.JobInterrupted {
		handle.Fail(walkErr, ScanProgress{FilesScanned: result.FilesScanned, DirectoriesSeen: result.DirectoriesSeen})
		w.setState(StateFailed)
		return result, walkErr
	}
	handle.Complete(result.Status, ScanProgress{FilesScanned: result.FilesScanned, DirectoriesSeen: result.DirectoriesSeen})
	return result, nil
}

// Start begins live watching: subscribes to the backend (kernel-native,
// falling back to polling on ENOSPC) and runs the receive loop in a new
// goroutine under its own watcher Job.
func (w *Watcher) Start(ctx context.Context) error {
	volID := w.VolumeID()
	path := w.cfg.Root
	handle, err := w.tracker.StartJob(catalog.JobKindWatcher, &path, &volID, catalog.JobRunning, nil)
	if err != nil {
		w.setState(StateFailed)
		return err
	}
	w.mu.Lock()
	w.watcherJob = handle
	w.mu.Unlock()

	backend, err := NewBackend(w.cfg.Root, w.cfg.PollingInterval)
	if err != nil {
		handle.Fail(err, nil)
		w.setState(StateFailed)
		return &diskerrors.WatcherBackendError{Backend: "inotify", Err: err}
	}
	if backend.Name() == "polling" {
		log.Printf("[WARN] watcher %s: backend=polling (watch descriptor exhaustion fallback)", w.cfg.Root)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.backend = backend
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.setState(StateWatching)
	go w.runLoop(runCtx, handle)
	return nil
}

func (w *Watcher) runLoop(ctx context.Context, handle *jobs.Handle) {
	defer close(w.done)
	lastHeartbeat := time.Now()

	for {
		select {
		case <-ctx.Done():
			handle.Complete(catalog.JobStopped, nil)
			w.backend.Close()
			w.setState(StateStopped)
			return
		default:
		}

		ev, err := w.backend.Receive()
		if err != nil {
			if ctx.Err() != nil {
				handle.Complete(catalog.JobStopped, nil)
				w.setState(StateStopped)
				return
			}
			log.Printf("[ERROR] watcher %s: backend receive failed: %v", w.cfg.Root, err)
			handle.Fail(err, nil)
			w.setState(StateFailed)
			w.backend.Close()
			return
		}

		kind := mapRawKind(ev.Kind)
		if w.cfg.Excludes == nil || !w.cfg.Excludes.Matches(ev.Path) {
			if err := w.appendEvent(kind, ev.Path, filepath.Dir(ev.Path), w.VolumeID()); err != nil {
				log.Printf("[ERROR] watcher %s: append event failed: %v", w.cfg.Root, err)
			}
		}

		if time.Since(lastHeartbeat) >= time.Second {
			handle.Heartbeat(nil)
			lastHeartbeat = time.Now()
		}
	}
}

func mapRawKind(k RawKind) string {
	switch k {
	case RawCreated:
		return catalog.EventCreated
	case RawModified:
		return catalog.EventModified
	case RawDeleted:
		return catalog.EventDeleted
	default:
		return catalog.EventModified
	}
}

// Stop cancels the live watch loop and waits (bounded) for it to exit.
func (w *Watcher) Stop(status string) {
	w.setState(StateStopping)
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	backend := w.backend
	handle := w.watcherJob
	w.mu.Unlock()

	// a status other than "stopped" is recorded before the loop exits, since
	// the loop itself completes the job as "stopped".
	if handle != nil && status != "" && status != catalog.JobStopped {
		handle.Complete(status, nil)
	}
	if cancel != nil {
		cancel()
	}
	if backend != nil {
		// unblocks a Receive in progress so the loop sees the cancellation.
		backend.Close()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			// bounded wait per spec.md §5; proceed with shutdown regardless.
		}
	}
	w.setState(StateStopped)
}

// appendEvent resolves current mount metadata (reprobing per the
// exponential-backoff schedule when incomplete) and writes the event
// against the Watcher's own catalog connection. Live watching (runLoop)
// always uses this; RunScan also uses this for its serial-mode scan.
func (w *Watcher) appendEvent(kind, path, directory, volumeID string) error {
	return w.appendEventOn(w.db, kind, path, directory, volumeID)
}

// appendEventOn is appendEvent generalized over the catalog connection to
// write through, so a worker-pool scan (RunScanOn) can target its own
// *catalog.DB while live watching keeps using the Watcher's shared one.
// catalog.DB.AppendEvent itself suppresses denied paths entirely (event row
// included), per spec.md §9 open question 1, so every caller gets that
// suppression for free through this single call site.
func (w *Watcher) appendEventOn(db *catalog.DB, kind, path, directory, volumeID string) error {
	w.maybeReprobe()

	var meta *catalog.MountMetadata
	capacityAnchor := w.cfg.Root
	w.mu.Lock()
	if w.mount != nil {
		meta = &catalog.MountMetadata{
			Device: w.mount.Device,
			Point:  w.mount.MountPoint,
			UUID:   w.mount.UUID,
			Lsblk:  w.mount.Lsblk.AsMap(),
		}
		if w.mount.MountPoint != "" {
			capacityAnchor = w.mount.MountPoint
		}
	}
	w.mu.Unlock()

	err := db.AppendEvent(kind, path, directory, volumeID, w.cfg.ProcessID, time.Now(), meta, diskutil.CapacityFunc(capacityAnchor))
	if err != nil {
		log.Printf("[ERROR] watcher %s: %v", w.cfg.Root, err)
	}
	return err
}

// maybeReprobe implements spec.md §4.4's mount-metadata caching rule: a
// "complete" MountInfo is cached forever; otherwise reprobe with
// exponential backoff (300s doubling to 3600s).
func (w *Watcher) maybeReprobe() {
	w.mu.Lock()
	mount := w.mount
	next := w.nextReprobe
	w.mu.Unlock()

	if mount.IsComplete() {
		return
	}
	if !next.IsZero() && time.Now().Before(next) {
		return
	}

	info, err := mountprobe.Probe(w.cfg.Root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		delay := w.reprobeDelay
		if delay == 0 {
			delay = 300 * time.Second
		} else {
			delay *= 2
			if delay > 3600*time.Second {
				delay = 3600 * time.Second
			}
		}
		w.reprobeDelay = delay
		w.nextReprobe = time.Now().Add(delay)
		return
	}
	w.mount = info
	if !info.IsComplete() {
		delay := w.reprobeDelay
		if delay == 0 {
			delay = 300 * time.Second
		} else {
			delay *= 2
			if delay > 3600*time.Second {
				delay = 3600 * time.Second
			}
		}
		w.reprobeDelay = delay
		w.nextReprobe = time.Now().Add(delay)
	}
}
