package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) {
	panic("sink exploded")
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}

	d.Emit(context.Background(), Event{Type: EventLogin})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("expected zero counters on nil dispatcher")
	}
}

func TestDispatcherDropIfFullNeverBlocks(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Emit(context.Background(), Event{Type: EventRateLimit})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with DropIfFull enabled")
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a stalled sink")
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)

	// one event in the worker, one in the buffer
	d.Emit(context.Background(), Event{Type: EventLogin})
	d.Emit(context.Background(), Event{Type: EventLogin})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	d.Emit(ctx, Event{Type: EventLogin})
	if time.Since(start) > time.Second {
		t.Fatal("Emit did not return after context deadline")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", d.Dropped())
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink, nil)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Type: EventLogout})
	}
	d.Close()

	if sink.Count() != 50 {
		t.Fatalf("expected 50 delivered events after Close, got %d", sink.Count())
	}
	if d.Delivered() != 50 {
		t.Fatalf("expected Delivered()=50, got %d", d.Delivered())
	}

	d.Emit(context.Background(), Event{Type: EventLogout})
	if sink.Count() != 50 {
		t.Fatal("expected Emit after Close to be ignored")
	}
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{}, nil)
	d.Emit(context.Background(), Event{Type: EventAuthFailure})
	d.Emit(context.Background(), Event{Type: EventAuthFailure})
	d.Close()

	if d.Delivered() != 0 {
		t.Fatalf("expected no successful deliveries, got %d", d.Delivered())
	}
}

type failingSink struct {
	countingSink
	failEvery int64
	writes    atomic.Int64
}

func (s *failingSink) Write(ctx context.Context, event Event) error {
	if s.writes.Add(1)%s.failEvery == 0 {
		return errors.New("disk full")
	}
	s.Emit(ctx, event)
	return nil
}

func TestDispatcherCountsFailedWrites(t *testing.T) {
	sink := &failingSink{failEvery: 2}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink, nil)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: EventLogin})
	}
	d.Close()

	if d.Delivered() != 5 || d.Failed() != 5 {
		t.Fatalf("expected 5 delivered and 5 failed, got %d and %d", d.Delivered(), d.Failed())
	}
	if sink.Count() != 5 {
		t.Fatalf("expected 5 persisted events, got %d", sink.Count())
	}
}

func TestMultiSinkJoinsWriteErrors(t *testing.T) {
	plain := &countingSink{}
	failing := &failingSink{failEvery: 1}
	m := MultiSink{plain, nil, failing}

	err := m.Write(context.Background(), Event{Type: EventLogout})
	if err == nil {
		t.Fatal("expected the failing sink's error")
	}
	if plain.Count() != 1 {
		t.Fatalf("expected plain sink to receive the event, got %d", plain.Count())
	}

	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, m, nil)
	d.Emit(context.Background(), Event{Type: EventLogout})
	d.Close()
	if d.Failed() != 1 || d.Delivered() != 0 {
		t.Fatalf("expected the event counted as failed, got delivered=%d failed=%d", d.Delivered(), d.Failed())
	}
}
