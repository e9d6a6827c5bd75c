// Package supervisor implements the Watcher Supervisor component (spec.md
// §4.5): registers directories, owns watcher lifetimes, schedules initial
// scans serially or via a worker pool, and aggregates status. Grounded on
// internal/scheduler/scheduler.go's worker-pool pattern (task queue
// channel, fixed worker slice, WaitGroup join, context-based Stop),
// generalized from "scan Docker volumes on a schedule" to "run initial
// scans for directory watchers, then hand off to live watching."
package supervisor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/asalt/diskwatcher/internal/catalog"
	"github.com/asalt/diskwatcher/internal/jobs"
	"github.com/asalt/diskwatcher/internal/watcher"
)

// Config configures the Supervisor.
type Config struct {
	Excludes        *watcher.ExcludeSet
	PollingInterval time.Duration
	MaxScanWorkers  int // 0 means host parallelism
}

// Supervisor owns the live watcher set.
type Supervisor struct {
	cfg     Config
	db      *catalog.DB
	tracker *jobs.Tracker

	mu       sync.Mutex
	watchers map[string]*watcher.Watcher // keyed by resolved path
	running  bool
}

// New constructs a Supervisor bound to db and tracker.
func New(cfg Config, db *catalog.DB, tracker *jobs.Tracker) *Supervisor {
	return &Supervisor{cfg: cfg, db: db, tracker: tracker, watchers: map[string]*watcher.Watcher{}}
}

func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs // tolerate nonexistence: return the unresolved (absolute) path
	}
	return resolved
}

// AddDirectory resolves path, deduplicates by resolved path (first wins),
// probes mount identity if volumeID is empty, and registers a watcher.
// watcher.New shells out to lsblk/findmnt (up to a 5s timeout each), so
// it runs without holding s.mu — only the registration itself is a
// critical section, re-checking for a concurrent winner before
// committing to avoid a duplicate watcher on the same path.
func (s *Supervisor) AddDirectory(path, volumeID string) (*watcher.Watcher, error) {
	resolvedPath := resolve(path)

	s.mu.Lock()
	if existing, ok := s.watchers[resolvedPath]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	running := s.running
	s.mu.Unlock()

	w, err := watcher.New(watcher.Config{
		Root:            resolvedPath,
		VolumeID:        volumeID,
		Excludes:        s.cfg.Excludes,
		PollingInterval: s.cfg.PollingInterval,
	}, s.db, s.tracker)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.watchers[resolvedPath]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.watchers[resolvedPath] = w
	running = s.running
	s.mu.Unlock()

	if running {
		if startErr := w.Start(context.Background()); startErr != nil {
			log.Printf("[WARN] supervisor: failed to start new watcher %s: %v", resolvedPath, startErr)
		}
	}
	return w, nil
}

// RemoveDirectory stops and deregisters the watcher whose resolved path
// matches path, terminating its watcher job with status "removed".
func (s *Supervisor) RemoveDirectory(path string) error {
	resolvedPath := resolve(path)

	s.mu.Lock()
	w, ok := s.watchers[resolvedPath]
	if ok {
		delete(s.watchers, resolvedPath)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	w.Stop(catalog.JobRemoved)
	return nil
}

// CurrentPaths returns the resolved paths of every registered watcher.
func (s *Supervisor) CurrentPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.watchers))
	for p := range s.watchers {
		paths = append(paths, p)
	}
	return paths
}

// ScanTarget selects which watchers RunInitialScans should target.
type ScanTarget struct {
	Parallel   bool
	MaxWorkers int
	Subset     []string // resolved paths; nil means "all watchers"
}

// RunInitialScans enqueues one initial_scan job per targeted watcher and
// executes them, serially or via a worker pool, per spec.md §4.5.
func (s *Supervisor) RunInitialScans(ctx context.Context, t ScanTarget) (map[string]*watcher.ScanResult, error) {
	targets := s.resolveTargets(t.Subset)

	if !t.Parallel || s.db.Path() == "" {
		// serial mode, or transparent degrade when the catalog has no
		// on-disk path (e.g. in-memory) for workers to open independently.
		results := make(map[string]*watcher.ScanResult, len(targets))
		for path, w := range targets {
			res, err := w.RunScan(ctx)
			if err != nil && res == nil {
				return results, err
			}
			results[path] = res
		}
		return results, nil
	}

	maxWorkers := t.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = s.cfg.MaxScanWorkers
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	if maxWorkers > len(targets) {
		maxWorkers = len(targets)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	type task struct {
		path  string
		w     *watcher.Watcher
		jobID string
	}
	taskCh := make(chan task, len(targets))
	for path, w := range targets {
		volID := w.VolumeID()
		root := path
		handle, err := s.tracker.StartJob(catalog.JobKindInitialScan, &root, &volID, catalog.JobRunning, nil)
		if err != nil {
			log.Printf("[ERROR] supervisor: failed to create scan job for %s: %v", path, err)
			continue
		}
		taskCh <- task{path: path, w: w, jobID: handle.JobID()}
	}
	close(taskCh)

	var mu sync.Mutex
	results := make(map[string]*watcher.ScanResult, len(targets))
	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				res, err := s.runScanOnOwnConnection(ctx, t.w, t.jobID)
				if err != nil {
					log.Printf("[ERROR] supervisor: initial scan failed for %s: %v", t.path, err)
				}
				mu.Lock()
				results[t.path] = res
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results, nil
}

// runScanOnOwnConnection opens a fresh catalog connection against the
// supervisor's known on-disk path, attaches to the pre-created job jobID
// via a Tracker wrapping that connection, and runs w's scan through it —
// spec.md §4.5's "each parallel worker opens its own catalog connection...
// and attaches to the pre-created job by id," mirroring
// original_source/src/diskwatcher/db/jobs.py's JobHandle.attach(). The
// connection is closed when the scan finishes; it never touches s.db.
func (s *Supervisor) runScanOnOwnConnection(ctx context.Context, w *watcher.Watcher, jobID string) (*watcher.ScanResult, error) {
	workerDB, err := catalog.Open(catalog.DefaultConfig(s.db.Path()))
	if err != nil {
		return nil, fmt.Errorf("open worker catalog connection: %w", err)
	}
	defer workerDB.Close()

	workerTracker := jobs.New(workerDB)
	return w.RunScanOn(ctx, workerDB, workerTracker, jobID)
}

func (s *Supervisor) resolveTargets(subset []string) map[string]*watcher.Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subset == nil {
		out := make(map[string]*watcher.Watcher, len(s.watchers))
		for p, w := range s.watchers {
			out[p] = w
		}
		return out
	}
	out := make(map[string]*watcher.Watcher, len(subset))
	for _, p := range subset {
		if w, ok := s.watchers[p]; ok {
			out[p] = w
		}
	}
	return out
}

// StartAll starts a live loop for every watcher with no active watcher
// job.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	watchers := make([]*watcher.Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	var errs []error
	for _, w := range watchers {
		if w.State() == watcher.StateWatching {
			continue
		}
		if err := w.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.VolumeID(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("StartAll: %d watcher(s) failed to start: %v", len(errs), errs)
	}
	return nil
}

// StopAll stops every watcher and joins, terminating each watcher job with
// status "stopped".
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.running = false
	watchers := make([]*watcher.Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range watchers {
		wg.Add(1)
		go func(w *watcher.Watcher) {
			defer wg.Done()
			w.Stop(catalog.JobStopped)
		}(w)
	}
	wg.Wait()
}

// WatcherStatus is one entry of Status()'s snapshot.
type WatcherStatus struct {
	Path     string
	VolumeID string
	State    watcher.State
	Live     bool
}

// Status returns a snapshot of every watcher's resolved path, volume id,
// liveness, and state.
func (s *Supervisor) Status() []WatcherStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]WatcherStatus, 0, len(s.watchers))
	for path, w := range s.watchers {
		st := w.State()
		out = append(out, WatcherStatus{
			Path:     path,
			VolumeID: w.VolumeID(),
			State:    st,
			Live:     st == watcher.StateWatching,
		})
	}
	return out
}
