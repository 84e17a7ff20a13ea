// Package ingest is the pipeline core: it pulls raw provider payloads
// through the transformers, dedups and merges them, and lands them with the
// batch upsert engine inside units of work.
package ingest

import (
	"errors"

	"sportsync/internal/client/breaker"
	"sportsync/internal/ratelimit"
	"sportsync/internal/transform"
)

// ErrCycleFailed is returned when every enabled sport failed during a sync
// cycle. Partial failure is reported in the cycle summary, not as an error.
var ErrCycleFailed = errors.New("sync cycle failed for all sports")

// retriableFetch reports whether a fetch error is worth another cycle soon.
// Budget exhaustion is not: the window has to roll first.
func retriableFetch(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ratelimit.ErrBudgetExhausted) {
		return false
	}
	return true
}

// skippableRecord reports whether a per-record error should count against
// the batch but not abort it. Transform failures are the canonical case.
func skippableRecord(err error) bool {
	return errors.Is(err, transform.ErrTransform)
}

// breakerRejected reports whether the provider was never dialed.
func breakerRejected(err error) bool {
	return errors.Is(err, breaker.ErrOpen)
}
