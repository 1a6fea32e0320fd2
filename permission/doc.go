// Package permission provides the role → permission table used by goGuard authorization
// checks.
//
// # Rules
//
// A role owns an ordered list of [Rule] values. A rule grants an action on a resource;
// either side may be the wildcard "*". A request is authorized when at least one rule of
// its role matches both the action and the resource. There is no precedence and no
// explicit deny.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. A [Table] is populated at
// startup, frozen, and then read concurrently.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goGuard, jwt, or session.
//   - Change role grants after [Table.Freeze].
package permission
