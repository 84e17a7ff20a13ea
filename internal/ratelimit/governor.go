// Package ratelimit enforces a provider's request contract across every
// caller in the process. One Governor guards one provider; it is constructed
// at the composition root and injected, never reached through a package
// variable.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned (wrapped) when the daily or per-minute
// budget has no slot left. Callers should defer to the next window instead of
// retrying.
var ErrBudgetExhausted = errors.New("request budget exhausted")

// BudgetExhaustedError carries the window detail alongside ErrBudgetExhausted.
type BudgetExhaustedError struct {
	Provider string
	Window   string // "daily" or "minute"
	Used     int
	Limit    int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("%s %s budget exhausted (%d/%d)", e.Provider, e.Window, e.Used, e.Limit)
}

func (e *BudgetExhaustedError) Unwrap() error {
	return ErrBudgetExhausted
}

// UsageStats is the budget snapshot exposed on the status endpoint.
type UsageStats struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	PercentUsed float64   `json:"percent_used"`
	WindowStart time.Time `json:"window_start"`
}

type Governor struct {
	provider    string
	dailyLimit  int
	minuteLimit int // 0 disables the per-minute window
	now         func() time.Time

	mu          sync.Mutex
	day         string // YYYY-MM-DD of the current window
	windowStart time.Time
	used        int
	minuteMark  time.Time
	minuteUsed  int
	audit       map[string]int
}

type Option func(*Governor)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

func WithPerMinuteLimit(limit int) Option {
	return func(g *Governor) { g.minuteLimit = limit }
}

func NewGovernor(provider string, dailyLimit int, opts ...Option) *Governor {
	g := &Governor{
		provider:   provider,
		dailyLimit: dailyLimit,
		now:        time.Now,
		audit:      map[string]int{},
	}
	for _, opt := range opts {
		opt(g)
	}
	now := g.now().UTC()
	g.day = now.Format("2006-01-02")
	g.windowStart = now.Truncate(24 * time.Hour)
	g.minuteMark = now.Truncate(time.Minute)
	return g
}

// TryAcquire reports whether a request slot is currently available. It does
// not reserve the slot; the acquire/record pair is kept atomic by callers
// holding at most one in-flight request per Acquire call via Acquire below.
func (g *Governor) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindows()
	if g.used >= g.dailyLimit {
		return false
	}
	if g.minuteLimit > 0 && g.minuteUsed >= g.minuteLimit {
		return false
	}
	return true
}

// Acquire is the compare-and-increment form: it claims a slot and returns a
// typed error when no slot is available. Source clients use this so that two
// concurrent callers cannot both pass a TryAcquire check against the last
// remaining slot.
func (g *Governor) Acquire(tag string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindows()
	if g.used >= g.dailyLimit {
		return &BudgetExhaustedError{Provider: g.provider, Window: "daily", Used: g.used, Limit: g.dailyLimit}
	}
	if g.minuteLimit > 0 && g.minuteUsed >= g.minuteLimit {
		return &BudgetExhaustedError{Provider: g.provider, Window: "minute", Used: g.minuteUsed, Limit: g.minuteLimit}
	}
	g.used++
	g.minuteUsed++
	g.audit[tag]++
	return nil
}

// RecordUsage increments the counters for a request that was issued without
// going through Acquire. Exactly one call per issued request.
func (g *Governor) RecordUsage(tag string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindows()
	g.used++
	g.minuteUsed++
	g.audit[tag]++
}

// Release returns a slot claimed by Acquire when the request was never sent
// (e.g. the circuit breaker rejected it before dialing).
func (g *Governor) Release(tag string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used > 0 {
		g.used--
	}
	if g.minuteUsed > 0 {
		g.minuteUsed--
	}
	if g.audit[tag] > 0 {
		g.audit[tag]--
	}
}

func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindows()
	remaining := g.dailyLimit - g.used
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *Governor) Stats() UsageStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindows()
	remaining := g.dailyLimit - g.used
	if remaining < 0 {
		remaining = 0
	}
	pct := 0.0
	if g.dailyLimit > 0 {
		pct = float64(g.used) / float64(g.dailyLimit) * 100
	}
	return UsageStats{
		Used:        g.used,
		Limit:       g.dailyLimit,
		Remaining:   remaining,
		PercentUsed: pct,
		WindowStart: g.windowStart,
	}
}

// AuditLog returns a copy of the per-tag usage counters for the current day.
func (g *Governor) AuditLog() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindows()
	out := make(map[string]int, len(g.audit))
	for k, v := range g.audit {
		out[k] = v
	}
	return out
}

// rollWindows resets counters when the wall-clock date (or minute) changed.
// Callers must hold g.mu. Budgets are not persisted across restarts; a
// restart granting a fresh budget early is an accepted risk.
func (g *Governor) rollWindows() {
	now := g.now().UTC()
	if day := now.Format("2006-01-02"); day != g.day {
		g.day = day
		g.windowStart = now.Truncate(24 * time.Hour)
		g.used = 0
		g.audit = map[string]int{}
	}
	if mark := now.Truncate(time.Minute); !mark.Equal(g.minuteMark) {
		g.minuteMark = mark
		g.minuteUsed = 0
	}
}
