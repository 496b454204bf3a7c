package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus is an in-process publish/subscribe hub. Publishing never blocks
// the caller on subscriber work: every handler runs in its own goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	stopCh   chan struct{}
	stopped  bool
	wg       sync.WaitGroup
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewEventBus creates an EventBus with no subscribers.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]handlerEntry),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe adds a named handler for eventType.
func (eb *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	eb.mu.Lock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handlerEntry{name: name, handler: handler})
	eb.mu.Unlock()

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// SubscribeMany adds the same handler for several event types.
func (eb *EventBus) SubscribeMany(types []EventType, name string, handler HandlerFunc) {
	for _, t := range types {
		eb.Subscribe(t, name, handler)
	}
}

// Unsubscribe removes every handler called name from eventType.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	kept := eb.handlers[eventType][:0:0]
	for _, h := range eb.handlers[eventType] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	eb.handlers[eventType] = kept
}

// snapshot returns the handlers for t, or nil once the bus is stopped.
func (eb *EventBus) snapshot(t EventType) []handlerEntry {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.stopped {
		return nil
	}
	hs := eb.handlers[t]
	out := make([]handlerEntry, len(hs))
	copy(out, hs)
	return out
}

// run invokes h and logs errors and panics.
func run(ctx context.Context, h handlerEntry, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	if err = h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("event handler failed")
	}
	return err
}

// Emit publishes event without waiting for handlers. A nil bus drops the
// event, so components can run without one.
func (eb *EventBus) Emit(ctx context.Context, event Event) {
	if eb == nil {
		return
	}
	hs := eb.snapshot(event.Type)
	if len(hs) == 0 {
		return
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(hs)).
		Msg("emitting event")

	eb.wg.Add(len(hs))
	for _, h := range hs {
		go func(h handlerEntry) {
			defer eb.wg.Done()
			run(ctx, h, event)
		}(h)
	}
}

// EmitSync publishes event and waits for every handler. It returns the first
// handler error.
func (eb *EventBus) EmitSync(ctx context.Context, event Event) error {
	if eb == nil {
		return nil
	}
	hs := eb.snapshot(event.Type)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(len(hs))
	for _, h := range hs {
		go func(h handlerEntry) {
			defer wg.Done()
			if err := run(ctx, h, event); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(h)
	}
	wg.Wait()
	return firstErr
}

// Stop rejects further events and waits for in-flight handlers. It is safe
// to call more than once.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	if eb.stopped {
		eb.mu.Unlock()
		return
	}
	eb.stopped = true
	close(eb.stopCh)
	eb.mu.Unlock()

	eb.wg.Wait()
	log.Info().Msg("event bus stopped")
}

// StopCh is closed when the bus stops.
func (eb *EventBus) StopCh() <-chan struct{} {
	return eb.stopCh
}

// HandlerCount returns the number of handlers for eventType.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}
