package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/session"
)

type sessionContextKey struct{}
type decisionContextKey struct{}

// WithSession attaches a validated session to ctx.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the session stored by the middleware, if any.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// WithDecision attaches the pipeline decision to ctx.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey{}, d)
}

// DecisionFromContext returns the decision stored by the middleware, if any.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	if ctx == nil {
		return Decision{}, false
	}
	d, ok := ctx.Value(decisionContextKey{}).(Decision)
	return d, ok
}

type loginContextKey struct{}

// LoginRecord collects the identity a login handler authenticated.
type LoginRecord struct {
	UserID    string
	SessionID string
}

// WithLoginRecord attaches rec to ctx for [MarkLogin].
func WithLoginRecord(ctx context.Context, rec *LoginRecord) context.Context {
	return context.WithValue(ctx, loginContextKey{}, rec)
}

// MarkLogin tells the middleware which user and session a login handler created.
// It is a no-op outside a login route.
func MarkLogin(ctx context.Context, userID, sessionID string) {
	rec, _ := ctx.Value(loginContextKey{}).(*LoginRecord)
	if rec == nil {
		return
	}
	rec.UserID = userID
	rec.SessionID = sessionID
}
