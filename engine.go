package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/store"
)

// Engine runs the per-request security pipeline. It is safe for concurrent use after
// [Builder.Build].
type Engine struct {
	config      Config
	store       store.Store
	limiter     *rate.Limiter
	validator   *session.Validator
	permissions *permission.Table
	verifier    jwt.Verifier
	issuer      *jwt.Manager
	audit       *audit.Logger
	metrics     *Metrics
	logger      *slog.Logger
	cors        *corsPolicy
	trusted     []*net.IPNet
	routes      []Route
	now         func() time.Time

	closers   []func() error
	closed    atomic.Bool
	closeOnce sync.Once
}

// Close drains the audit and alert queues and releases owned resources.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.audit.Close()
		for i := len(e.closers) - 1; i >= 0; i-- {
			if err := e.closers[i](); err != nil {
				e.logger.Warn("engine close", slog.Any("error", err))
			}
		}
	})
}

// AuditDropped returns the number of security events dropped because the queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Stats().Dropped
}

// AuditStats returns audit delivery and alert counters.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// MetricsSnapshot returns a copy of the in-process counters. It is empty when metrics
// are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Permissions returns the frozen role table.
func (e *Engine) Permissions() *permission.Table {
	return e.permissions
}

/* ==== Request context ==== */

// NewRequestContext snapshots r: client IP through the trusted proxy list, token from
// the configured header or cookie, and a private copy of the headers.
func (e *Engine) NewRequestContext(r *http.Request) RequestContext {
	return RequestContext{
		IP:        ClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), e.trusted),
		Path:      r.URL.Path,
		Method:    r.Method,
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
		Token:     e.tokenFromRequest(r),
		Header:    r.Header.Clone(),
	}
}

func (e *Engine) tokenFromRequest(r *http.Request) string {
	if name := e.config.Token.HeaderName; name != "" {
		if tok := ExtractToken(r.Header.Get(name), e.config.Token.Scheme); tok != "" {
			return tok
		}
	}
	if name := e.config.Token.CookieName; name != "" {
		if c, err := r.Cookie(name); err == nil {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

// ExtractToken strips scheme from a header value such as "Bearer abc". An empty scheme
// returns the trimmed value unchanged.
func ExtractToken(value, scheme string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if scheme == "" {
		return value
	}
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

/* ==== Routes ==== */

// RouteFor returns the configured route with the longest prefix matching path.
func (e *Engine) RouteFor(path string) (Route, bool) {
	if e == nil {
		return Route{}, false
	}
	for _, r := range e.routes {
		if r.matches(path) {
			return r, true
		}
	}
	return Route{}, false
}

func sortRoutes(routes []Route) []Route {
	out := append([]Route(nil), routes...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return out
}

/* ==== Pipeline ==== */

// Evaluate runs the pipeline for one request:
// Entering → RateLimited? → Authenticating → Authorizing → Forwarded | Rejected.
//
// Security events are recorded for every rejection. Evaluate never returns an error;
// failures are expressed as a rejected [Decision] whose Err wraps a root sentinel.
func (e *Engine) Evaluate(ctx context.Context, rc RequestContext, route Route) Decision {
	if e == nil || e.closed.Load() {
		return Decision{
			State:  StateRejected,
			Status: http.StatusServiceUnavailable,
			Header: make(http.Header),
			Err:    ErrEngineNotReady,
		}
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricEvaluateLatency, time.Since(start))
		}
	}()

	// Entering
	d := Decision{State: StateEntering, Header: make(http.Header)}
	preflight, originAllowed := e.cors.apply(d.Header, rc)
	if preflight {
		if !originAllowed {
			e.metricInc(MetricCORSRejected)
			e.record(ctx, rc, audit.EventPermissionDenied, nil, ReasonCORSOrigin, nil)
			return e.reject(d, http.StatusForbidden, ReasonCORSOrigin, ErrForbidden)
		}
		e.metricInc(MetricPreflight)
		d.State = StatePreflight
		d.Status = http.StatusNoContent
		return d
	}

	// RateLimited?
	d.State = StateRateLimiting
	if e.limiter != nil {
		rl := e.limiter.Check(ctx, rc.Path, rc.IP)
		d.RateLimit = RateLimitInfo{
			Checked:    true,
			PolicyPath: rl.PolicyPath,
			Limit:      rl.Policy.Limit,
			Remaining:  rl.Remaining,
			Window:     rl.Policy.Window,
			FailOpen:   rl.FailOpen,
		}
		if rl.FailOpen {
			e.metricInc(MetricRateLimitFailOpen)
			e.logger.Warn("rate limiter failed open",
				slog.String("path", rc.Path),
				slog.String("policy", rl.PolicyPath),
				slog.Any("error", rl.Err),
			)
			e.record(ctx, rc, audit.EventRateLimit, nil, ReasonStoreUnavailable, map[string]string{
				audit.MetaOutcome: "fail_open",
			})
		} else {
			setRateLimitHeaders(d.Header, rl, e.now())
		}
		if !rl.Allowed {
			e.metricInc(MetricRateLimited)
			d.RetryAfter = rl.RetryAfter
			d.Header.Set("Retry-After", strconv.FormatInt(retryAfterSeconds(rl.RetryAfter), 10))
			md := map[string]string{
				audit.MetaOutcome: "denied",
				"policy":          rl.PolicyPath,
			}
			if rl.Blocked {
				md["blocked"] = "true"
			}
			e.record(ctx, rc, audit.EventRateLimit, nil, ReasonRateLimited, md)
			return e.reject(d, http.StatusTooManyRequests, ReasonRateLimited, rateLimitError(rl.Err))
		}
	}

	if !route.RequireAuth {
		return e.forward(d, nil)
	}

	// Authenticating
	d.State = StateAuthenticating
	if rc.Token == "" {
		e.metricInc(MetricMissingToken)
		e.record(ctx, rc, audit.EventAuthFailure, nil, ReasonMissingToken, nil)
		return e.unauthorized(d, ReasonMissingToken, ErrUnauthorized)
	}

	claims, err := e.verifier.Verify(ctx, rc.Token)
	if err != nil {
		e.metricInc(MetricInvalidToken)
		e.record(ctx, rc, audit.EventAuthFailure, nil, ReasonInvalidToken, nil)
		return e.unauthorized(d, ReasonInvalidToken, fmt.Errorf("%w: %v", ErrUnauthorized, err))
	}

	sess, err := e.validator.Validate(ctx, claims)
	if err != nil {
		reason, rootErr := classifySessionError(err)
		switch reason {
		case ReasonSessionExpired:
			e.metricInc(MetricSessionExpired)
		case ReasonSessionRevoked:
			e.metricInc(MetricSessionRevoked)
		case ReasonStoreUnavailable:
			e.metricInc(MetricSessionStoreUnavailable)
			e.logger.Error("session store unavailable", slog.String("path", rc.Path), slog.Any("error", err))
		default:
			e.metricInc(MetricInvalidToken)
		}
		partial := &session.Session{ID: claims.JTI, UserID: claims.UserID, Role: claims.Role}
		e.record(ctx, rc, audit.EventAuthFailure, partial, reason, nil)
		return e.unauthorized(d, reason, rootErr)
	}
	d.Session = sess

	// Authorizing
	d.State = StateAuthorizing
	if route.Action != "" && !e.permissions.HasPermission(sess.Role, route.Action, route.Resource) {
		e.metricInc(MetricPermissionDenied)
		e.record(ctx, rc, audit.EventPermissionDenied, sess, ReasonForbidden, map[string]string{
			"action":   route.Action,
			"resource": route.Resource,
			"role":     sess.Role,
		})
		return e.reject(d, http.StatusForbidden, ReasonForbidden, ErrForbidden)
	}

	return e.forward(d, sess)
}

func (e *Engine) forward(d Decision, sess *session.Session) Decision {
	e.metricInc(MetricRequestForwarded)
	d.State = StateForwarded
	d.Status = http.StatusOK
	d.Session = sess
	return d
}

func (e *Engine) reject(d Decision, status int, reason Reason, err error) Decision {
	d.State = StateRejected
	d.Status = status
	d.Reason = reason
	d.Err = err
	d.Session = nil
	return d
}

func (e *Engine) unauthorized(d Decision, reason Reason, err error) Decision {
	d.Header.Set("WWW-Authenticate", e.config.Token.Scheme)
	return e.reject(d, http.StatusUnauthorized, reason, err)
}

func setRateLimitHeaders(h http.Header, rl rate.Decision, now time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Policy.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(rl.Policy.Window).Unix(), 10))
}

// retryAfterSeconds rounds up so a client never retries early.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64(math.Ceil(d.Seconds()))
}

/* ==== Events ==== */

func (e *Engine) record(ctx context.Context, rc RequestContext, typ audit.EventType, sess *session.Session, reason Reason, md map[string]string) {
	ev := audit.Event{
		Type:      typ,
		IP:        rc.IP,
		UserAgent: rc.UserAgent,
		Method:    rc.Method,
		Path:      rc.Path,
		Metadata:  md,
	}
	if sess != nil {
		ev.UserID = sess.UserID
		ev.SessionID = sess.ID
	}
	if reason != ReasonNone {
		if ev.Metadata == nil {
			ev.Metadata = make(map[string]string, 1)
		}
		ev.Metadata[audit.MetaReason] = string(reason)
	}
	e.audit.Record(ctx, ev)
}

// RecordLogin records the outcome of a credential endpoint. Statuses below 400 emit a
// login event, 401 emits auth_failure, anything else is ignored.
func (e *Engine) RecordLogin(ctx context.Context, rc RequestContext, status int, userID, sessionID string) {
	if e == nil || e.closed.Load() {
		return
	}
	switch {
	case status < http.StatusBadRequest:
		e.metricInc(MetricLoginSuccess)
		e.record(ctx, rc, audit.EventLogin, &session.Session{ID: sessionID, UserID: userID}, ReasonNone, nil)
	case status == http.StatusUnauthorized:
		e.metricInc(MetricLoginFailure)
		md := map[string]string{"stage": "login"}
		e.record(ctx, rc, audit.EventAuthFailure, &session.Session{UserID: userID}, ReasonInvalidToken, md)
	}
}

/* ==== Session lifecycle ==== */

// Logout revokes sess and records a logout event. Logging out an already revoked
// session succeeds.
func (e *Engine) Logout(ctx context.Context, sess *session.Session, rc RequestContext) error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	if sess == nil || sess.ID == "" {
		return ErrUnauthorized
	}

	created, err := e.validator.Invalidate(ctx, sess.ID)
	if err != nil {
		e.logger.Error("logout failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.record(ctx, rc, audit.EventLogout, sess, ReasonNone, map[string]string{
		"revoked": strconv.FormatBool(created),
	})
	return nil
}

// Invalidate force-revokes jti without a request, e.g. from an admin action.
func (e *Engine) Invalidate(ctx context.Context, jti string) error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	if _, err := e.validator.Invalidate(ctx, jti); err != nil {
		if errors.Is(err, session.ErrInvalidClaims) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IssueToken signs an access token for userID when the engine owns a signing key.
// It returns the token and its jti.
func (e *Engine) IssueToken(userID, role string) (string, string, error) {
	if e == nil || e.issuer == nil {
		return "", "", ErrEngineNotReady
	}
	if len(e.permissions.Rules(role)) == 0 {
		return "", "", fmt.Errorf("%w: unknown role %q", ErrForbidden, role)
	}
	return e.issuer.CreateAccess(userID, role)
}

// Health pings the store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}
	start := time.Now()
	err := e.store.Ping(ctx)
	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   time.Since(start),
	}
}
