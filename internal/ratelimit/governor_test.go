package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDailyLimitExhaustion(t *testing.T) {
	g := NewGovernor("sportdata", 5, WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))))

	for i := 0; i < 5; i++ {
		if !g.TryAcquire() {
			t.Fatalf("acquire %d: expected slot available", i+1)
		}
		g.RecordUsage("fixtures")
	}
	if g.TryAcquire() {
		t.Fatalf("6th acquire should be denied")
	}
	if got := g.Stats().Used; got != 5 {
		t.Fatalf("used = %d, want 5 (denied TryAcquire must not increment)", got)
	}
	if got := g.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestAcquireReturnsTypedError(t *testing.T) {
	g := NewGovernor("sportdata", 1, WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))))

	if err := g.Acquire("fixtures"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	err := g.Acquire("fixtures")
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	var be *BudgetExhaustedError
	if !errors.As(err, &be) || be.Window != "daily" {
		t.Fatalf("expected daily BudgetExhaustedError, got %#v", err)
	}
}

func TestPerMinuteWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	g := NewGovernor("sportdata", 100,
		WithClock(func() time.Time { return now }),
		WithPerMinuteLimit(2))

	if err := g.Acquire("a"); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	if err := g.Acquire("a"); err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	var be *BudgetExhaustedError
	if err := g.Acquire("a"); !errors.As(err, &be) || be.Window != "minute" {
		t.Fatalf("expected minute exhaustion, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := g.Acquire("a"); err != nil {
		t.Fatalf("acquire after minute rollover: %v", err)
	}
	if got := g.Stats().Used; got != 3 {
		t.Fatalf("daily used = %d, want 3 (minute rollover must not reset daily)", got)
	}
}

func TestDayRolloverResetsCounterAndAudit(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	g := NewGovernor("sportdata", 2, WithClock(func() time.Time { return now }))

	if err := g.Acquire("fixtures"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := g.Acquire("odds"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if g.TryAcquire() {
		t.Fatalf("budget should be exhausted before midnight")
	}

	now = time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	if !g.TryAcquire() {
		t.Fatalf("budget should reset after date change")
	}
	if got := g.Stats().Used; got != 0 {
		t.Fatalf("used = %d after rollover, want 0", got)
	}
	if got := len(g.AuditLog()); got != 0 {
		t.Fatalf("audit log should be cleared on rollover, has %d tags", got)
	}
}

func TestConcurrentAcquireNeverOverspends(t *testing.T) {
	const limit = 50
	g := NewGovernor("sportdata", limit, WithClock(fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))))

	var wg sync.WaitGroup
	granted := make(chan struct{}, limit*4)
	for i := 0; i < limit*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire("load"); err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != limit {
		t.Fatalf("granted %d slots, want exactly %d", count, limit)
	}
	if got := g.Stats().Used; got != limit {
		t.Fatalf("used = %d, want %d", got, limit)
	}
}

func TestReleaseReturnsSlot(t *testing.T) {
	g := NewGovernor("sportdata", 1, WithClock(fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))))

	if err := g.Acquire("fixtures"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	g.Release("fixtures")
	if err := g.Acquire("fixtures"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if got := g.AuditLog()["fixtures"]; got != 1 {
		t.Fatalf("audit count = %d, want 1", got)
	}
}
