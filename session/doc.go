// Package session validates authenticated sessions against idle timeout and revocation.
//
// A session is identified by the token's unique id (jti). The [Validator] keeps two pieces
// of shared state per session: the last-activity timestamp and, once the session ends, a
// blacklist entry that outlives any token that could carry the id.
//
// # Failure policy
//
// Validation fails closed. When the store cannot be reached the request is treated as
// unauthenticated ([ErrStoreUnavailable]).
//
// # Architecture boundaries
//
// This package receives already-verified [Claims]. It does NOT parse or verify tokens
// (see package jwt), evaluate permissions, or log security events.
//
// # What this package must NOT do
//
//   - Import goGuard, jwt, or permission (no upward imports).
//   - Cache session state between requests.
package session
