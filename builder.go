package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/store"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, call Build once,
// and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	verifier    jwt.Verifier
	permissions *permission.Table

	auditSink AuditSink
	alerter   Alerter
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. The engine keeps a deep copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing every shared counter and session record.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the store directly, overriding WithRedis. Tests use [store.NewMemory].
func (b *Builder) WithStore(st store.Store) *Builder {
	b.store = st
	return b
}

// WithVerifier replaces the token verifier derived from Config.Token.
func (b *Builder) WithVerifier(v jwt.Verifier) *Builder {
	b.verifier = v
	return b
}

// WithPermissionTable uses t instead of Config.Permissions. Build freezes it.
func (b *Builder) WithPermissionTable(t *permission.Table) *Builder {
	b.permissions = t
	return b
}

// WithRoles overrides Config.Permissions.Roles with "action:resource" rules per role.
func (b *Builder) WithRoles(roles map[string][]string) *Builder {
	b.config.Permissions.Roles = roles
	return b
}

// WithAuditSink sets where security events are persisted. The default logs them.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithAlerter sets the receiver of suspicious events.
func (b *Builder) WithAlerter(a Alerter) *Builder {
	b.alerter = a
	return b
}

// WithLogger sets the logger for every component. Nil means slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used by the limiter, validator, and event timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Evaluate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
//
// Build fails when no store is available, when neither a verifier nor signing keys are
// configured, or when any configuration value is invalid. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config: cfg,
		logger: logger.With("component", "goguard"),
		now:    now,
	}

	// -------- STORE --------
	st := b.store
	if st == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or store required")
		}
		st = store.NewRedis(b.redis)
	}
	e.store = st

	// -------- TOKEN VERIFIER --------
	if err := b.buildVerifier(e, cfg.Token); err != nil {
		e.Close()
		return nil, err
	}

	// -------- PERMISSION TABLE --------
	table := b.permissions
	if table == nil {
		roles := cfg.Permissions.Roles
		if len(roles) == 0 {
			roles = permission.DefaultRoles()
		}
		var err error
		if table, err = permission.FromStrings(roles); err != nil {
			e.Close()
			return nil, fmt.Errorf("%w: permissions: %v", ErrInvalidConfig, err)
		}
	}
	table.Freeze()
	e.permissions = table

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		rt, err := rate.NewTable(cfg.RateLimit.Policies)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("%w: rate limit: %v", ErrInvalidConfig, err)
		}
		e.limiter = rate.New(st, rt, rate.Config{
			StoreTimeout: cfg.Store.Timeout,
			Now:          now,
		})
	}

	// -------- SESSION VALIDATOR --------
	validator, err := session.NewValidator(st, session.Config{
		IdleTimeout:      cfg.Session.IdleTimeout,
		MaxTokenLifetime: cfg.Session.MaxTokenLifetime,
		StoreTimeout:     cfg.Store.Timeout,
		Now:              now,
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("%w: session: %v", ErrInvalidConfig, err)
	}
	e.validator = validator

	// -------- SECURITY EVENTS --------
	sink := b.auditSink
	if sink == nil {
		sink = NewSlogSink(logger.With("component", "security_event"))
	}
	opts := []audit.LoggerOption{
		audit.WithDedupStore(st),
		audit.WithSlog(logger),
		audit.WithClock(now),
	}
	if b.alerter != nil {
		opts = append(opts, audit.WithAlerter(b.alerter))
	}
	auditLog, err := audit.NewLogger(audit.LoggerConfig{
		Dispatch: audit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		},
		SuspiciousIPs:        cfg.Audit.SuspiciousIPs,
		SuspiciousUserAgents: cfg.Audit.SuspiciousUserAgents,
		AlertBuffer:          cfg.Alerts.BufferSize,
		AlertsPerSecond:      cfg.Alerts.PerSecond,
		AlertBurst:           cfg.Alerts.Burst,
		AlertTimeout:         cfg.Alerts.Timeout,
		AlertDedupWindow:     cfg.Alerts.DedupWindow,
	}, sink, opts...)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("%w: audit: %v", ErrInvalidConfig, err)
	}
	e.audit = auditLog

	// -------- HTTP POLICY --------
	e.metrics = NewMetrics(cfg.Metrics)
	e.trusted = ParseTrustedProxies(cfg.Network.TrustedProxies)
	e.cors = newCORSPolicy(cfg.CORS)
	e.routes = sortRoutes(cfg.Routes)

	b.built = true

	return e, nil
}

func (b *Builder) buildVerifier(e *Engine, tc TokenConfig) error {
	if b.verifier != nil {
		e.verifier = b.verifier
		if m, ok := b.verifier.(*jwt.Manager); ok {
			e.issuer = m
		}
		return nil
	}

	if tc.JWKSURL != "" {
		ctx, cancel := context.WithCancel(context.Background())
		v, err := jwt.NewJWKSVerifier(ctx, jwt.JWKSConfig{
			URL:      tc.JWKSURL,
			Issuer:   tc.Issuer,
			Audience: tc.Audience,
			Leeway:   tc.Leeway,
		})
		if err != nil {
			cancel()
			return fmt.Errorf("%w: jwks: %v", ErrInvalidConfig, err)
		}
		e.verifier = v
		e.closers = append(e.closers, func() error {
			cancel()
			return nil
		})
		return nil
	}

	if len(tc.PrivateKey) == 0 && len(tc.PublicKey) == 0 {
		return fmt.Errorf("%w: token verifier, signing keys, or JWKS URL required", ErrInvalidConfig)
	}

	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     tc.AccessTTL,
		SigningMethod: jwt.SigningMethod(tc.SigningMethod),
		PrivateKey:    tc.PrivateKey,
		PublicKey:     tc.PublicKey,
		Issuer:        tc.Issuer,
		Audience:      tc.Audience,
		Leeway:        tc.Leeway,
		KeyID:         tc.KeyID,
	})
	if err != nil {
		return fmt.Errorf("%w: token: %v", ErrInvalidConfig, err)
	}
	e.verifier = m
	if len(tc.PrivateKey) > 0 {
		e.issuer = m
	}
	return nil
}
