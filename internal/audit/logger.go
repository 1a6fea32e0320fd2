package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/store"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Suspicious reasons recorded under MetaSuspiciousReason.
const (
	ReasonAuthFailure = "auth_failure"
	ReasonIPDenylist  = "ip_denylist"
	ReasonUserAgent   = "user_agent"
)

// Alerter receives suspicious events off the request path.
type Alerter interface {
	Alert(ctx context.Context, event Event) error
}

// AlerterFunc adapts a function to [Alerter].
type AlerterFunc func(ctx context.Context, event Event) error

func (f AlerterFunc) Alert(ctx context.Context, event Event) error { return f(ctx, event) }

// SlogAlerter logs alerts at WARN.
type SlogAlerter struct {
	Logger *slog.Logger
}

func (a SlogAlerter) Alert(ctx context.Context, event Event) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelWarn, "security alert", eventAttrs(event)...)
	return nil
}

// LoggerConfig configures [Logger].
type LoggerConfig struct {
	Dispatch Config

	// SuspiciousIPs lists IPs or CIDRs whose events are flagged.
	SuspiciousIPs []string
	// SuspiciousUserAgents lists regular expressions matched against the user agent.
	SuspiciousUserAgents []string

	AlertBuffer      int
	AlertsPerSecond  float64
	AlertBurst       int
	AlertTimeout     time.Duration
	AlertDedupWindow time.Duration
}

// LoggerOption configures optional [Logger] collaborators.
type LoggerOption func(*Logger)

// WithAlerter sets the alert receiver. Without one, alerts go to a [SlogAlerter].
func WithAlerter(a Alerter) LoggerOption {
	return func(l *Logger) {
		if a != nil {
			l.alerter = a
		}
	}
}

// WithDedupStore enables per (type, ip) alert de-duplication through st.
func WithDedupStore(st store.Store) LoggerOption {
	return func(l *Logger) { l.dedup = st }
}

// WithSlog sets the logger used for the component's own diagnostics.
func WithSlog(logger *slog.Logger) LoggerOption {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// Logger records security events, flags suspicious ones, and raises alerts.
//
// Record never blocks on sink or alert I/O and never returns an error.
type Logger struct {
	cfg        LoggerConfig
	dispatcher *Dispatcher
	alerter    Alerter
	dedup      store.Store
	logger     *slog.Logger
	now        func() time.Time

	denyNets []*net.IPNet
	uaRules  []*regexp.Regexp

	limiter   *rate.Limiter
	alerts    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool

	recorded      atomic.Uint64
	suspicious    atomic.Uint64
	alertsSent    atomic.Uint64
	alertsDropped atomic.Uint64
	alertsDeduped atomic.Uint64
	alertsFailed  atomic.Uint64
}

// NewLogger builds a [Logger] delivering events to sink and starts its workers.
func NewLogger(cfg LoggerConfig, sink Sink, opts ...LoggerOption) (*Logger, error) {
	l := &Logger{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.alerter == nil {
		l.alerter = SlogAlerter{Logger: l.logger}
	}

	nets, err := parseIPRules(cfg.SuspiciousIPs)
	if err != nil {
		return nil, err
	}
	l.denyNets = nets

	for _, expr := range cfg.SuspiciousUserAgents {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("suspicious user agent %q: %w", expr, err)
		}
		l.uaRules = append(l.uaRules, re)
	}

	if cfg.AlertBuffer <= 0 {
		cfg.AlertBuffer = 64
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = 5 * time.Second
	}
	l.cfg = cfg

	limit := rate.Inf
	if cfg.AlertsPerSecond > 0 {
		limit = rate.Limit(cfg.AlertsPerSecond)
	}
	burst := cfg.AlertBurst
	if burst <= 0 {
		burst = 1
	}
	l.limiter = rate.NewLimiter(limit, burst)

	l.dispatcher = NewDispatcher(cfg.Dispatch, sink, l.logger)
	l.alerts = make(chan Event, cfg.AlertBuffer)

	l.wg.Add(1)
	go l.runAlerts()

	return l, nil
}

// Record stamps, classifies, and queues event.
func (l *Logger) Record(ctx context.Context, event Event) {
	if l == nil || l.closed.Load() {
		return
	}

	event = event.clone()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	if reasons := l.classify(event); len(reasons) > 0 {
		event.Suspicious = true
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata[MetaSuspiciousReason] = strings.Join(reasons, ",")
	}

	l.recorded.Add(1)
	l.dispatcher.Emit(ctx, event)

	if event.Suspicious {
		l.suspicious.Add(1)
		select {
		case l.alerts <- event:
		default:
			l.alertsDropped.Add(1)
		}
	}
}

// IsSuspicious reports whether event would be flagged.
func (l *Logger) IsSuspicious(event Event) bool {
	return len(l.classify(event)) > 0
}

func (l *Logger) classify(event Event) []string {
	var reasons []string
	if event.Type == EventAuthFailure {
		reasons = append(reasons, ReasonAuthFailure)
	}
	if len(l.denyNets) > 0 && event.IP != "" {
		if ip := net.ParseIP(event.IP); ip != nil {
			for _, n := range l.denyNets {
				if n.Contains(ip) {
					reasons = append(reasons, ReasonIPDenylist)
					break
				}
			}
		}
	}
	if event.UserAgent != "" {
		for _, re := range l.uaRules {
			if re.MatchString(event.UserAgent) {
				reasons = append(reasons, ReasonUserAgent)
				break
			}
		}
	}
	return reasons
}

func (l *Logger) runAlerts() {
	defer l.wg.Done()

	for {
		select {
		case event := <-l.alerts:
			l.alert(event)
		case <-l.done:
			for {
				select {
				case event := <-l.alerts:
					l.alert(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) alert(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.AlertTimeout)
	defer cancel()

	if l.dedup != nil && l.cfg.AlertDedupWindow > 0 {
		n, err := l.dedup.IncrWithTTL(ctx, store.AlertKey(string(event.Type), event.IP), l.cfg.AlertDedupWindow)
		if err != nil {
			l.logger.Warn("alert dedup unavailable", slog.Any("error", err))
		} else if n > 1 {
			l.alertsDeduped.Add(1)
			return
		}
	}

	if !l.limiter.Allow() {
		l.alertsDropped.Add(1)
		return
	}

	if err := l.alerter.Alert(ctx, event); err != nil {
		l.alertsFailed.Add(1)
		l.logger.Warn("security alert delivery failed",
			slog.String("event_id", event.ID),
			slog.String("type", string(event.Type)),
			slog.Any("error", err),
		)
		return
	}
	l.alertsSent.Add(1)
}

// Close drains queued events and alerts, then stops the workers.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.dispatcher.Close()
		close(l.done)
		l.wg.Wait()
	})
}

// Stats is a point-in-time view of logger counters.
type Stats struct {
	Recorded      uint64
	Suspicious    uint64
	Delivered     uint64
	Failed        uint64
	Dropped       uint64
	AlertsSent    uint64
	AlertsDropped uint64
	AlertsDeduped uint64
	AlertsFailed  uint64
}

// Stats returns the current counters.
func (l *Logger) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	return Stats{
		Recorded:      l.recorded.Load(),
		Suspicious:    l.suspicious.Load(),
		Delivered:     l.dispatcher.Delivered(),
		Failed:        l.dispatcher.Failed(),
		Dropped:       l.dispatcher.Dropped(),
		AlertsSent:    l.alertsSent.Load(),
		AlertsDropped: l.alertsDropped.Load(),
		AlertsDeduped: l.alertsDeduped.Load(),
		AlertsFailed:  l.alertsFailed.Load(),
	}
}

func parseIPRules(rules []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(rules))
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ipNet, err := net.ParseCIDR(r); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(r)
		if ip == nil {
			return nil, fmt.Errorf("suspicious ip %q is neither an IP nor a CIDR", r)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}
