// Package store is the shared key-value adapter behind every stateful goGuard component.
//
// The rate limiter, the session validator, and the alert de-duplicator all mutate state
// exclusively through [Store]. Composite operations ([Store.SlideWindow],
// [Store.TouchActivity], [Store.Revoke]) are atomic on the server side, so many goGuard
// processes can share one store without in-process locks.
//
// Two implementations are provided:
//
//   - [Redis]: go-redis client, Lua scripts for the composite operations.
//   - [Memory]: single-process map with an injectable clock, used by tests.
//
// # Key layout
//
//	ratelimit:{path}:{ip}            sorted set of request timestamps, TTL = window
//	ratelimit:{path}:{ip}:blocked    presence flag, TTL = block duration
//	session:{jti}:lastActivity       unix milliseconds, TTL = idle timeout
//	blacklist:{jti}                  presence flag, TTL = max token lifetime
//	alert:{type}:{ip}                alert de-duplication counter
//
// # What this package must NOT do
//
//   - Make allow/deny decisions (callers interpret results).
//   - Cache state between calls.
package store
