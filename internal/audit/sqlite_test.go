package audit

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteSinkPersistsAndQueries(t *testing.T) {
	sink, err := NewSQLiteSink(":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer sink.Close()

	base := time.UnixMilli(1_700_000_000_000).UTC()
	ctx := context.Background()

	sink.Emit(ctx, Event{ID: "e1", Timestamp: base, Type: EventLogin, UserID: "u1", IP: "10.0.0.1"})
	sink.Emit(ctx, Event{
		ID:         "e2",
		Timestamp:  base.Add(time.Second),
		Type:       EventAuthFailure,
		IP:         "10.0.0.2",
		Path:       "/api/posts",
		Method:     "GET",
		Suspicious: true,
		Metadata:   map[string]string{MetaReason: "invalid_token"},
	})
	sink.Emit(ctx, Event{ID: "e3", Timestamp: base.Add(2 * time.Second), Type: EventAuthFailure})
	// duplicate IDs are ignored
	sink.Emit(ctx, Event{ID: "e3", Timestamp: base.Add(3 * time.Second), Type: EventAuthFailure})

	all, err := sink.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].ID != "e3" || all[2].ID != "e1" {
		t.Fatalf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}

	failures, err := sink.Recent(ctx, EventAuthFailure, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(failures) != 1 || failures[0].ID != "e3" {
		t.Fatalf("expected only e3, got %+v", failures)
	}

	failures, err = sink.Recent(ctx, EventAuthFailure, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	e2 := failures[1]
	if !e2.Suspicious || e2.Metadata[MetaReason] != "invalid_token" || e2.Path != "/api/posts" {
		t.Fatalf("round trip lost fields: %+v", e2)
	}
	if !e2.Timestamp.Equal(base.Add(time.Second)) {
		t.Fatalf("expected timestamp %v, got %v", base.Add(time.Second), e2.Timestamp)
	}
}

func TestSQLiteSinkBehindLogger(t *testing.T) {
	sink, err := NewSQLiteSink(":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer sink.Close()

	l, err := NewLogger(testLoggerConfig(), sink, WithAlerter(&recordingAlerter{}))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		l.Record(context.Background(), Event{Type: EventRateLimit, IP: "10.0.0.1"})
	}
	l.Close()

	events, err := sink.Recent(context.Background(), EventRateLimit, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 20 {
		t.Fatalf("expected 20 persisted events, got %d", len(events))
	}
}

func TestSQLiteSinkWriteReportsFailure(t *testing.T) {
	sink, err := NewSQLiteSink(":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	ctx := context.Background()
	ev := Event{ID: "w1", Timestamp: time.Now(), Type: EventLogin}

	if err := sink.Write(ctx, ev); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Write(ctx, Event{ID: "w2", Timestamp: time.Now(), Type: EventLogin}); err == nil {
		t.Fatal("expected write on a closed database to fail")
	}

	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, nil)
	d.Emit(ctx, Event{ID: "w3", Timestamp: time.Now(), Type: EventLogin})
	d.Close()
	if d.Failed() != 1 || d.Delivered() != 0 {
		t.Fatalf("expected failed write to be counted, got delivered=%d failed=%d", d.Delivered(), d.Failed())
	}
}
