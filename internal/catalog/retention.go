package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/asalt/diskwatcher/internal/diskerrors"
)

// RetentionConfig controls background pruning of old catalog rows.
// Events are append-only and grow without bound (spec.md §3); a long-lived
// daemon needs some way to bound that growth, which spec.md leaves silent.
// Grounded on internal/services/lifecycle/retention.go's ticker-plus-TTL
// shape, trimmed to the two tables this schema actually has and to SQLite's
// single datetime() dialect (the Postgres-vs-SQLite dual-path is dropped
// along with the Postgres backend).
type RetentionConfig struct {
	Enabled        bool          // master switch, default off
	EventTTLDays   int           // 0 disables event pruning
	JobTTLDays     int           // 0 disables terminal-job pruning
	Interval       time.Duration // how often to run
	InitialDelay   time.Duration // delay before first run
}

// RetentionService runs background pruning against a catalog DB.
type RetentionService struct {
	db     *DB
	cfg    RetentionConfig
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRetentionService constructs a RetentionService bound to db.
func NewRetentionService(db *DB, cfg RetentionConfig) *RetentionService {
	return &RetentionService{db: db, cfg: cfg, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// Start begins the background ticker; a no-op if cfg.Enabled is false.
func (s *RetentionService) Start() {
	if !s.cfg.Enabled {
		close(s.doneCh)
		return
	}
	go func() {
		defer close(s.doneCh)
		if s.cfg.InitialDelay > 0 {
			select {
			case <-time.After(s.cfg.InitialDelay):
			case <-s.stopCh:
				return
			}
		}
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		s.runOnce(context.Background())
		for {
			select {
			case <-ticker.C:
				s.runOnce(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop signals the service to stop and waits for the current cycle to
// finish.
func (s *RetentionService) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}

func (s *RetentionService) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if s.cfg.EventTTLDays > 0 {
		if n, err := s.pruneEvents(ctx, s.cfg.EventTTLDays); err != nil {
			log.Printf("[WARN] retention: prune events failed: %v", err)
		} else if n > 0 {
			log.Printf("[INFO] retention: pruned %d event row(s)", n)
		}
	}
	if s.cfg.JobTTLDays > 0 {
		if n, err := s.pruneJobs(ctx, s.cfg.JobTTLDays); err != nil {
			log.Printf("[WARN] retention: prune jobs failed: %v", err)
		} else if n > 0 {
			log.Printf("[INFO] retention: pruned %d terminal job row(s)", n)
		}
	}
}

func (s *RetentionService) pruneEvents(ctx context.Context, ttlDays int) (int64, error) {
	s.db.Lock()
	defer s.db.Unlock()
	q := fmt.Sprintf("DELETE FROM events WHERE timestamp < datetime('now', '-%d days')", ttlDays)
	res, err := s.db.rw.ExecContext(ctx, q)
	if err != nil {
		return 0, &diskerrors.CatalogWriteError{Op: "retention.prune_events", Err: err}
	}
	return res.RowsAffected()
}

func (s *RetentionService) pruneJobs(ctx context.Context, ttlDays int) (int64, error) {
	s.db.Lock()
	defer s.db.Unlock()
	q := fmt.Sprintf(
		`DELETE FROM jobs WHERE completed_at IS NOT NULL AND completed_at < datetime('now', '-%d days')`,
		ttlDays)
	res, err := s.db.rw.ExecContext(ctx, q)
	if err != nil {
		return 0, &diskerrors.CatalogWriteError{Op: "retention.prune_jobs", Err: err}
	}
	return res.RowsAffected()
}
