// Package middleware adapts goGuard.Engine to net/http.
//
// # Handlers
//
//   - [Guard] looks up the route for each request path in the engine's route table.
//   - [Protect] and [RequirePermission] apply one route to a single handler.
//   - [LogoutHandler] revokes the caller's session.
//
// Each guard builds a goGuard.RequestContext, calls Engine.Evaluate, and copies the
// decision headers onto the response. Rejections get a JSON body of the form
// {"error":{"code":"...","message":"..."}}. Forwarded requests carry the session and
// decision in their context.
//
// On login routes the handler reports the authenticated identity with goGuard.MarkLogin;
// the response status then decides between a login and an auth_failure event.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access the store.
//   - Reveal in a 401 body which check failed.
package middleware
