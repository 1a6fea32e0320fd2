package goGuard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/session"
)

// RequestContext is the immutable per-request snapshot the pipeline evaluates.
//
// Build it with [Engine.NewRequestContext] for HTTP or fill it directly for other
// transports. Header is a private copy; the pipeline never mutates it.
type RequestContext struct {
	IP        string
	Path      string
	Method    string
	UserAgent string
	Origin    string
	// Token is the raw bearer token, empty when none was presented.
	Token  string
	Header http.Header
}

func (rc RequestContext) isPreflight() bool {
	return rc.Method == http.MethodOptions &&
		rc.Origin != "" &&
		rc.Header.Get("Access-Control-Request-Method") != ""
}

// Route describes the protection applied to a path prefix.
type Route struct {
	Prefix      string
	RequireAuth bool
	// Action and Resource are checked against the session role when set.
	Action   string
	Resource string
	// Login marks a credential endpoint: a successful response emits a login event,
	// a 401 response emits an auth_failure event.
	Login bool
}

func (r Route) validate() error {
	if (r.Action == "") != (r.Resource == "") {
		return errors.New("action and resource must be set together")
	}
	if r.Action != "" && !r.RequireAuth {
		return errors.New("a permission check requires RequireAuth")
	}
	if r.Login && r.RequireAuth {
		return errors.New("login routes cannot require authentication")
	}
	return nil
}

func (r Route) matches(path string) bool {
	if path == r.Prefix {
		return true
	}
	if !strings.HasPrefix(path, r.Prefix) {
		return false
	}
	return strings.HasSuffix(r.Prefix, "/") || path[len(r.Prefix)] == '/'
}

// State is a pipeline state. Only [StateForwarded], [StateRejected], and
// [StatePreflight] are terminal and appear in a [Decision].
type State uint8

const (
	StateEntering State = iota
	StateRateLimiting
	StateAuthenticating
	StateAuthorizing
	StateForwarded
	StateRejected
	StatePreflight
)

func (s State) String() string {
	switch s {
	case StateEntering:
		return "entering"
	case StateRateLimiting:
		return "rate_limiting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorizing:
		return "authorizing"
	case StateForwarded:
		return "forwarded"
	case StateRejected:
		return "rejected"
	case StatePreflight:
		return "preflight"
	default:
		return "unknown"
	}
}

// Reason is the internal cause of a rejection. It is recorded in security events and
// never written to a 401 response.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonRateLimited      Reason = "rate_limited"
	ReasonMissingToken     Reason = "missing_token"
	ReasonInvalidToken     Reason = "invalid_token"
	ReasonSessionExpired   Reason = "session_expired"
	ReasonSessionRevoked   Reason = "session_revoked"
	ReasonStoreUnavailable Reason = "store_unavailable"
	ReasonForbidden        Reason = "forbidden"
	ReasonCORSOrigin       Reason = "cors_origin"
)

// RateLimitInfo reports the limiter outcome carried by a [Decision].
type RateLimitInfo struct {
	Checked    bool
	PolicyPath string
	Limit      int
	Remaining  int
	Window     time.Duration
	FailOpen   bool
}

// Decision is the pipeline outcome for one request.
type Decision struct {
	State  State
	Status int
	Reason Reason
	// Header holds CORS, security, and rate-limit headers to copy onto the response.
	Header     http.Header
	RetryAfter time.Duration
	Session    *session.Session
	RateLimit  RateLimitInfo
	// Err wraps the matching root sentinel for rejections.
	Err error
}

// Forwarded reports whether the request may reach the application handler.
func (d Decision) Forwarded() bool {
	return d.State == StateForwarded
}

// HealthStatus reports store reachability.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
}
