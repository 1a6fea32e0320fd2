// Package goGuard is a request-time security control plane for HTTP and gRPC services.
// Every request passes a sliding-window rate limiter, token and session validation
// with idle timeout and revocation, and a role permission check, in that order.
// Every rejection is recorded as a security event.
//
// The package is built for concurrent server workloads: [Engine] methods are safe to
// call from multiple goroutines once [Builder.Build] returns.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config], [Decision],
// and value types such as [MetricsSnapshot] and [SecurityReport]. Shared state lives in a
// [store.Store], normally Redis, so several instances enforce the same limits and
// revocations. Limiting and event dispatch live under internal/ and are never exported
// except through the aliases in this package.
//
// # Failure policy
//
// A store outage fails open for rate limiting and fails closed for session validation.
// Event sinks and alerters never block or fail a request.
//
// # What this package must NOT do
//
//   - Tell a client which authentication check failed.
//   - Mutate the [RequestContext] it evaluates.
//   - Import any sub-package that re-imports goGuard (no import cycles).
package goGuard
