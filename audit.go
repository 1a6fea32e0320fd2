package goGuard

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goGuard/internal/audit"
)

// AuditEvent is one append-only security record.
type AuditEvent = audit.Event

// EventType classifies an [AuditEvent].
type EventType = audit.EventType

const (
	EventLogin            = audit.EventLogin
	EventLogout           = audit.EventLogout
	EventAuthFailure      = audit.EventAuthFailure
	EventRateLimit        = audit.EventRateLimit
	EventPermissionDenied = audit.EventPermissionDenied
)

// Metadata keys written by the engine and the audit logger.
const (
	MetaReason           = audit.MetaReason
	MetaSuspiciousReason = audit.MetaSuspiciousReason
	MetaOutcome          = audit.MetaOutcome
)

// AuditSink receives security events from the dispatcher goroutine.
type AuditSink = audit.Sink

// AuditWriterSink is an [AuditSink] that reports failed writes; they are counted in
// [AuditStats].Failed instead of Delivered.
type AuditWriterSink = audit.WriterSink

// AuditStats reports audit and alert counters.
type AuditStats = audit.Stats

// Built-in sinks.
type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	SlogSink       = audit.SlogSink
	SQLiteSink     = audit.SQLiteSink
	MultiSink      = audit.MultiSink
)

// Alerter receives suspicious events off the request path.
type Alerter = audit.Alerter

// AlerterFunc adapts a function to [Alerter].
type AlerterFunc = audit.AlerterFunc

// SlogAlerter logs alerts at WARN.
type SlogAlerter = audit.SlogAlerter

// NewChannelSink returns a sink that buffers up to buffer events on a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging events at INFO, suspicious ones at WARN.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}

// NewSQLiteSink opens or creates a SQLite event table at path (":memory:" allowed).
func NewSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	return audit.NewSQLiteSink(path, logger)
}
