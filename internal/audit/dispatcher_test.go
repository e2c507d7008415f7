package audit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "login_success", Success: true})
	d.Emit(context.Background(), Event{EventType: "logout", Success: true})
	d.Close()

	got := []string{}
	for len(sink.Events()) > 0 {
		got = append(got, (<-sink.Events()).EventType)
	}
	if len(got) != 2 || got[0] != "login_success" || got[1] != "logout" {
		t.Fatalf("unexpected events %v", got)
	}

	// Emit after close is a no-op.
	d.Emit(context.Background(), Event{EventType: "late"})
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		EventType: "login_success",
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		EventType: "login_failure",
		Error:     "invalid credentials",
		Metadata:  map[string]string{"email": "a@x.io"},
	})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["meta.email"] != "a@x.io" {
		t.Fatalf("metadata missing: %v", entries[1].ContextMap())
	}
}

type gatedSink struct {
	gate     chan struct{}
	received chan Event
}

func (s *gatedSink) Emit(_ context.Context, ev Event) {
	<-s.gate
	s.received <- ev
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gatedSink{gate: make(chan struct{}), received: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The first event parks in the sink, the second fills the buffer.
	d.Emit(context.Background(), Event{EventType: "a"})
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Emit(context.Background(), Event{EventType: "c"})

	if d.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", d.Dropped())
	}
	close(sink.gate)
	d.Close()
	if len(sink.received) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(sink.received))
	}
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &gatedSink{gate: make(chan struct{}), received: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "a"})
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "c"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit did not return after context expiry")
	}
}
