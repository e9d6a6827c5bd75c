package progress

import (
	"context"
	"log"
	"time"
)

// BatchRunner implements the "batch monitor" variant of spec.md §4.7: wait
// for any non-terminal initial_scan job to appear, track the batch until
// none remain, reset, and repeat. Grounded on internal/scheduler's
// poll-until-idle loop shape, generalized from one-shot status reporting
// to a perpetual watch cycle.
type BatchRunner struct {
	src      JobSource
	interval time.Duration
	opts     Options
}

// NewBatchRunner constructs a BatchRunner polling src at interval
// (default 1s) between idle checks.
func NewBatchRunner(src JobSource, interval time.Duration, opts Options) *BatchRunner {
	if interval <= 0 {
		interval = time.Second
	}
	return &BatchRunner{src: src, interval: interval, opts: opts}
}

// Run blocks until ctx is cancelled, watching for batches of initial_scan
// jobs and rendering progress for each one in turn.
func (b *BatchRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var active *Monitor
	var stopCh chan struct{}
	// idleSince is the baseline of the next batch: initial_scan jobs started
	// at or after it belong to that batch.
	idleSince := time.Now()

	for {
		select {
		case <-ctx.Done():
			if stopCh != nil {
				close(stopCh)
			}
			return
		case <-ticker.C:
			if active == nil {
				snap, err := b.peek(idleSince)
				if err != nil {
					log.Printf("[WARN] progress: batch peek failed: %v", err)
					continue
				}
				if snap.Total == 0 {
					continue
				}
				active = New(b.src, b.opts)
				active.batchStarted = idleSince
				stopCh = make(chan struct{})
				go active.Run(stopCh)
				log.Printf("[INFO] progress: batch started (%d job(s))", snap.Total)
				continue
			}

			snap, err := active.Poll()
			if err != nil {
				log.Printf("[WARN] progress: batch poll failed: %v", err)
				continue
			}
			if snap.Running == 0 && snap.Total > 0 {
				close(stopCh)
				log.Printf("[INFO] progress: batch finished (%d complete, %d failed)", snap.Completed, snap.Failed)
				active = nil
				stopCh = nil
				idleSince = time.Now()
			}
		}
	}
}

// peek polls through a throwaway Monitor whose baseline is since, to see
// whether any initial_scan job has started since the last batch finished
// (or since Run began).
func (b *BatchRunner) peek(since time.Time) (Snapshot, error) {
	m := New(b.src, b.opts)
	m.batchStarted = since
	return m.Poll()
}
