// Package rate implements the per-path, per-IP sliding-window limiter used by the goGuard
// engine.
//
// # Window semantics
//
// Each (policy path, client IP) pair owns a sorted set of request timestamps. A check
// prunes entries older than the window, counts the rest, and either records the new
// request or denies it. An optional block entry short-circuits every check until it
// expires. The whole step runs as one atomic store operation.
//
// Policies are resolved by exact path, then longest prefix, then "default". A missing
// client IP is keyed under a reserved sentinel rather than merged with a real address.
//
// # What this package must NOT do
//
//   - Fail closed on store errors (the caller decides what to log and emit).
//   - Be imported outside the goGuard module.
package rate
