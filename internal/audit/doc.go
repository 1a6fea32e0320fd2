// Package audit records security events and raises alerts for suspicious ones.
//
// # Components
//
//   - [Logger]: stamps events, applies the suspicious heuristics, queues alerts.
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Sink]: event consumers (channel, JSON lines, slog, SQLite, fan-out, no-op).
//   - [Alerter]: receives suspicious events on a separate worker, throttled and de-duplicated.
//
// # Architecture boundaries
//
// This package owns event classification, buffering, and delivery. It does NOT decide
// which requests produce events; the engine calls [Logger.Record] at each decision point.
//
// # What this package must NOT do
//
//   - Block the caller of Record on sink or alert I/O.
//   - Return errors to the request path.
//   - Import goGuard or any sibling internal package.
package audit
