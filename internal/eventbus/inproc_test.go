package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testEvent(t *testing.T, eventType string) Event {
	t.Helper()
	ev, err := NewEvent(eventType, AggregateEvent, "42", map[string]string{"op": "updated"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func TestInProcFanOut(t *testing.T) {
	bus := NewInProc(zap.NewNop(), 0, time.Millisecond)

	var mu sync.Mutex
	got := map[string]int{}
	for _, name := range []string{"gateway", "metrics", "audit"} {
		name := name
		if err := bus.Subscribe(TypeSportsUpdate, name, func(ctx context.Context, ev Event) error {
			mu.Lock()
			got[name]++
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Subscribe(%s): %v", name, err)
		}
	}

	if err := bus.Publish(context.Background(), testEvent(t, TypeSportsUpdate)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"gateway", "metrics", "audit"} {
		if got[name] != 1 {
			t.Fatalf("handler %s saw %d events, want 1", name, got[name])
		}
	}
}

func TestInProcRetriesThenGivesUp(t *testing.T) {
	bus := NewInProc(zap.NewNop(), 2, time.Millisecond)

	var calls atomic.Int32
	if err := bus.Subscribe(TypeSportsUpdate, "flaky", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return errors.New("downstream unavailable")
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), testEvent(t, TypeSportsUpdate)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("handler called %d times, want 3 (1 + 2 retries)", got)
	}
}

func TestInProcFailingHandlerDoesNotBlockSiblings(t *testing.T) {
	bus := NewInProc(zap.NewNop(), 1, time.Millisecond)

	var ok atomic.Int32
	if err := bus.Subscribe(TypeMarketUpdate, "broken", func(ctx context.Context, ev Event) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Subscribe(TypeMarketUpdate, "healthy", func(ctx context.Context, ev Event) error {
		ok.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), testEvent(t, TypeMarketUpdate)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ok.Load() != 1 {
		t.Fatalf("healthy handler saw %d events, want 1", ok.Load())
	}
}

func TestInProcUnsubscribe(t *testing.T) {
	bus := NewInProc(zap.NewNop(), 0, time.Millisecond)

	var calls atomic.Int32
	if err := bus.Subscribe(TypeSportsUpdate, "once", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), testEvent(t, TypeSportsUpdate)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.Unsubscribe(TypeSportsUpdate, "once")
	if err := bus.Publish(context.Background(), testEvent(t, TypeSportsUpdate)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("handler saw %d events after unsubscribe, want 1", calls.Load())
	}
}

func TestInProcShutdownStopsDelivery(t *testing.T) {
	bus := NewInProc(zap.NewNop(), 0, time.Millisecond)

	var calls atomic.Int32
	_ = bus.Subscribe(TypeSportsUpdate, "late", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return nil
	})

	if !bus.Healthy() {
		t.Fatal("fresh bus should be healthy")
	}
	if err := bus.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if bus.Healthy() {
		t.Fatal("bus should be unhealthy after shutdown")
	}
	if err := bus.Publish(context.Background(), testEvent(t, TypeSportsUpdate)); err != nil {
		t.Fatalf("Publish after shutdown: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("handler saw %d events after shutdown, want 0", calls.Load())
	}
}

func TestNewEventAssignsSortableIDs(t *testing.T) {
	first := testEvent(t, TypeSportsUpdate)
	time.Sleep(2 * time.Millisecond)
	second := testEvent(t, TypeSportsUpdate)

	if len(first.ID) != 26 || len(second.ID) != 26 {
		t.Fatalf("ULID lengths = %d, %d, want 26", len(first.ID), len(second.ID))
	}
	if !(first.ID < second.ID) {
		t.Fatalf("later event ID %q not greater than earlier %q", second.ID, first.ID)
	}
}
