package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestEmitSyncRunsAllHandlers(t *testing.T) {
	eb := NewEventBus()
	defer eb.Stop()

	var calls atomic.Int32
	for _, name := range []string{"a", "b"} {
		eb.Subscribe(EventSessionCreated, name, func(context.Context, Event) error {
			calls.Add(1)
			return nil
		})
	}
	if err := eb.EmitSync(context.Background(), New(EventSessionCreated, "test", nil)); err != nil {
		t.Fatalf("EmitSync: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestEmitSyncReturnsError(t *testing.T) {
	eb := NewEventBus()
	defer eb.Stop()

	boom := errors.New("boom")
	eb.Subscribe(EventChatMessage, "failing", func(context.Context, Event) error { return boom })
	eb.Subscribe(EventChatMessage, "panicking", func(context.Context, Event) error { panic("x") })

	if err := eb.EmitSync(context.Background(), New(EventChatMessage, "test", nil)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	eb := NewEventBus()
	defer eb.Stop()

	eb.SubscribeMany([]EventType{EventStreamJoined, EventStreamLeft}, "obs", func(context.Context, Event) error { return nil })
	eb.Unsubscribe(EventStreamJoined, "obs")
	if n := eb.HandlerCount(EventStreamJoined); n != 0 {
		t.Errorf("joined handlers = %d", n)
	}
	if n := eb.HandlerCount(EventStreamLeft); n != 1 {
		t.Errorf("left handlers = %d", n)
	}
}

func TestEmitAfterStop(t *testing.T) {
	eb := NewEventBus()
	var calls atomic.Int32
	eb.Subscribe(EventShutdown, "h", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	eb.Emit(context.Background(), New(EventShutdown, "test", nil))
	eb.Stop()
	eb.Stop()
	eb.Emit(context.Background(), New(EventShutdown, "test", nil))

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	select {
	case <-eb.StopCh():
	default:
		t.Error("StopCh not closed")
	}
}

func TestNilBus(t *testing.T) {
	var eb *EventBus
	eb.Emit(context.Background(), New(EventShutdown, "test", nil))
	if err := eb.EmitSync(context.Background(), New(EventShutdown, "test", nil)); err != nil {
		t.Errorf("EmitSync on nil bus: %v", err)
	}
}

func TestDestroyReasonJSON(t *testing.T) {
	b, _ := ReasonTimeout.MarshalJSON()
	if string(b) != `"timeout"` {
		t.Errorf("MarshalJSON = %s", b)
	}
	if DestroyReason(99).String() != "unknown" {
		t.Error("unknown reason string")
	}
}
