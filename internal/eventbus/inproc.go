package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InProcBus fans events out to named subscribers inside the process.
// Publish settles every handler before returning: each handler runs in its
// own goroutine with a fixed retry budget, and a handler that exhausts its
// budget is logged and dropped without affecting its siblings.
type InProcBus struct {
	Logger *zap.Logger

	maxRetries   int
	retryBackoff time.Duration

	mu       sync.RWMutex
	handlers map[string]map[string]Handler
	closed   bool
}

func NewInProc(logger *zap.Logger, maxRetries int, retryBackoff time.Duration) *InProcBus {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryBackoff <= 0 {
		retryBackoff = 100 * time.Millisecond
	}
	return &InProcBus{
		Logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		handlers:     make(map[string]map[string]Handler),
	}
}

func (b *InProcBus) Subscribe(eventType, name string, h Handler) error {
	if b == nil || h == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	group, ok := b.handlers[eventType]
	if !ok {
		group = make(map[string]Handler)
		b.handlers[eventType] = group
	}
	group[name] = h
	return nil
}

func (b *InProcBus) Unsubscribe(eventType, name string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if group, ok := b.handlers[eventType]; ok {
		delete(group, name)
	}
}

func (b *InProcBus) Publish(ctx context.Context, ev Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	group := b.handlers[ev.Type]
	snapshot := make(map[string]Handler, len(group))
	for name, h := range group {
		snapshot[name] = h
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for name, h := range snapshot {
		wg.Add(1)
		go func(name string, h Handler) {
			defer wg.Done()
			b.deliver(ctx, name, h, ev)
		}(name, h)
	}
	wg.Wait()
	return nil
}

func (b *InProcBus) PublishAll(ctx context.Context, events []Event) error {
	for _, ev := range events {
		if err := b.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (b *InProcBus) deliver(ctx context.Context, name string, h Handler, ev Event) {
	var err error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * b.retryBackoff):
			}
		}
		if err = h(ctx, ev); err == nil {
			return
		}
	}
	if b.Logger != nil {
		b.Logger.Error("event handler gave up",
			zap.String("handler", name),
			zap.String("event_type", ev.Type),
			zap.String("event_id", ev.ID),
			zap.Int("attempts", b.maxRetries+1),
			zap.Error(err))
	}
}

func (b *InProcBus) Healthy() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

func (b *InProcBus) Shutdown(context.Context) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string]map[string]Handler)
	return nil
}
