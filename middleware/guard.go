package middleware

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// Guard enforces the route table of engine. Paths matching no route are treated as
// public and are still rate limited.
func Guard(engine *goGuard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusServiceUnavailable)
				return
			}
			route, _ := engine.RouteFor(r.URL.Path)
			serve(engine, route, next, w, r)
		})
	}
}

// Protect enforces route on every request regardless of path. It suits routers that
// attach middleware per handler. route.Prefix is ignored.
func Protect(engine *goGuard.Engine, route goGuard.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusServiceUnavailable)
				return
			}
			serve(engine, route, next, w, r)
		})
	}
}

// RequirePermission is Protect for an authenticated route checking action on resource.
func RequirePermission(engine *goGuard.Engine, action, resource string) func(http.Handler) http.Handler {
	return Protect(engine, goGuard.Route{RequireAuth: true, Action: action, Resource: resource})
}

func serve(engine *goGuard.Engine, route goGuard.Route, next http.Handler, w http.ResponseWriter, r *http.Request) {
	rc := engine.NewRequestContext(r)
	d := engine.Evaluate(r.Context(), rc, route)

	h := w.Header()
	for k, v := range d.Header {
		h[k] = v
	}

	switch d.State {
	case goGuard.StatePreflight:
		w.WriteHeader(http.StatusNoContent)
		return
	case goGuard.StateForwarded:
	default:
		writeError(w, d.Status)
		return
	}

	ctx := goGuard.WithDecision(r.Context(), d)
	if d.Session != nil {
		ctx = goGuard.WithSession(ctx, d.Session)
	}

	if !route.Login {
		next.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	rec := &goGuard.LoginRecord{}
	sw := &statusWriter{ResponseWriter: w}
	next.ServeHTTP(sw, r.WithContext(goGuard.WithLoginRecord(ctx, rec)))
	engine.RecordLogin(r.Context(), rc, sw.Status(), rec.UserID, rec.SessionID)
}

// LogoutHandler revokes the session of an authenticated request and answers 204.
// Mount it behind [Guard] or [Protect] with RequireAuth.
func LogoutHandler(engine *goGuard.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := goGuard.SessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized)
			return
		}
		if err := engine.Logout(r.Context(), sess, engine.NewRequestContext(r)); err != nil {
			writeError(w, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
