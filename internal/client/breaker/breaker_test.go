package breaker

import (
	"errors"
	"testing"
	"time"
)

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("sportdata", 3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("breaker should stay closed below threshold: %v", err)
	}
	b.RecordFailure()
	err := b.Allow()
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after 3 failures, got %v", err)
	}
	var oe *OpenError
	if !errors.As(err, &oe) || oe.RetryAfter <= 0 {
		t.Fatalf("expected OpenError with retry hint, got %#v", err)
	}
}

func TestHalfOpenProbeAndRecovery(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := New("sportdata", 1, 1, 30*time.Second, WithClock(func() time.Time { return now }))

	b.RecordFailure()
	if err := b.Allow(); err == nil {
		t.Fatalf("expected open breaker")
	}

	now = now.Add(31 * time.Second)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state = %v after cooldown, want half_open", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("half-open should admit a probe: %v", err)
	}
	b.RecordSuccess()
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v after successful probe, want closed", got)
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := New("sportdata", 1, 1, 30*time.Second, WithClock(func() time.Time { return now }))

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("failed probe should reopen, got %v", err)
	}
}

func TestHalfOpenAdmitsOneProbeAtATime(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := New("sportdata", 1, 1, 30*time.Second, WithClock(func() time.Time { return now }))

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("first caller should get the probe: %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("second caller should be rejected while the probe is in flight, got %v", err)
	}
	b.RecordSuccess()
	if err := b.Allow(); err != nil {
		t.Fatalf("breaker should be closed after the probe succeeded: %v", err)
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New("sportdata", 2, 1, time.Minute)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if err := b.Allow(); err != nil {
		t.Fatalf("non-consecutive failures must not open the breaker: %v", err)
	}
}
