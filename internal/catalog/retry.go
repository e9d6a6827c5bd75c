package catalog

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/asalt/diskwatcher/internal/utils"
)

// isTransient reports whether err looks like SQLite's "database is
// locked"/"database is busy" contention error, the only case spec.md
// §4.1 calls for retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return utils.ContainsAny(err.Error(), "database is locked", "database is busy", "busy")
}

// withRetry runs fn, retrying up to 3 attempts total with exponential
// backoff (base 50ms, doubling) on transient lock-contention errors, per
// spec.md §4.1. Non-transient errors return immediately.
func withRetry(fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by attempt count below, not elapsed time

	attempts := 0
	const maxAttempts = 3

	var lastErr error
	op := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		if attempts >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, b); err != nil {
		return lastErr
	}
	return nil
}
