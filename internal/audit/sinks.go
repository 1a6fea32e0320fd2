package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Sink receives emitted security events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// WriterSink is implemented by sinks that can report a failed write. The dispatcher
// prefers Write over Emit so failed writes are counted instead of delivered.
type WriterSink interface {
	Sink
	Write(ctx context.Context, event Event) error
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a sink that buffers up to buffer events. Emit on a full buffer
// waits until the event fits or ctx ends.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
}

// SlogSink writes events as structured log records. Suspicious events log at WARN.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink logs events at INFO, suspicious ones at WARN.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if event.Suspicious {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "security event", eventAttrs(event)...)
}

// MultiSink fans events out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	_ = m.Write(ctx, event)
}

// Write emits to every sink and joins the errors of those implementing [WriterSink].
func (m MultiSink) Write(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		switch s := s.(type) {
		case nil:
		case WriterSink:
			if err := s.Write(ctx, event); err != nil {
				errs = append(errs, err)
			}
		default:
			s.Emit(ctx, event)
		}
	}
	return errors.Join(errs...)
}

func eventAttrs(event Event) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.Bool("suspicious", event.Suspicious),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("method", event.Method), slog.String("path", event.Path))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	return attrs
}
