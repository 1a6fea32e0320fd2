package goGuard

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "30s", "15m", "24h" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type filePolicy struct {
	Limit         int      `yaml:"limit"`
	Window        Duration `yaml:"window"`
	BlockDuration Duration `yaml:"block_duration"`
}

type fileRoute struct {
	Prefix      string `yaml:"prefix"`
	RequireAuth bool   `yaml:"require_auth"`
	Action      string `yaml:"action"`
	Resource    string `yaml:"resource"`
	Login       bool   `yaml:"login"`
}

// fileConfig is the YAML document layout. Unset keys keep their default values.
type fileConfig struct {
	RateLimit struct {
		Enabled  bool                  `yaml:"enabled"`
		Policies map[string]filePolicy `yaml:"policies"`
	} `yaml:"rate_limit"`

	Session struct {
		IdleTimeout      Duration `yaml:"idle_timeout"`
		MaxTokenLifetime Duration `yaml:"max_token_lifetime"`
	} `yaml:"session"`

	Token struct {
		HeaderName     string   `yaml:"header_name"`
		Scheme         string   `yaml:"scheme"`
		CookieName     string   `yaml:"cookie_name"`
		SigningMethod  string   `yaml:"signing_method"`
		AccessTTL      Duration `yaml:"access_ttl"`
		PrivateKeyFile string   `yaml:"private_key_file"`
		PublicKeyFile  string   `yaml:"public_key_file"`
		KeyID          string   `yaml:"key_id"`
		Issuer         string   `yaml:"issuer"`
		Audience       string   `yaml:"audience"`
		Leeway         Duration `yaml:"leeway"`
		JWKSURL        string   `yaml:"jwks_url"`
	} `yaml:"token"`

	Roles  map[string][]string `yaml:"roles"`
	Routes []fileRoute         `yaml:"routes"`

	CORS struct {
		Enabled          bool     `yaml:"enabled"`
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowedMethods   []string `yaml:"allowed_methods"`
		AllowedHeaders   []string `yaml:"allowed_headers"`
		ExposedHeaders   []string `yaml:"exposed_headers"`
		AllowCredentials bool     `yaml:"allow_credentials"`
		MaxAge           Duration `yaml:"max_age"`
		SecurityHeaders  bool     `yaml:"security_headers"`
		HSTSMaxAge       Duration `yaml:"hsts_max_age"`
	} `yaml:"cors"`

	TrustedProxies []string `yaml:"trusted_proxies"`

	Audit struct {
		Enabled              bool     `yaml:"enabled"`
		BufferSize           int      `yaml:"buffer_size"`
		DropIfFull           bool     `yaml:"drop_if_full"`
		SinkTimeout          Duration `yaml:"sink_timeout"`
		SuspiciousIPs        []string `yaml:"suspicious_ips"`
		SuspiciousUserAgents []string `yaml:"suspicious_user_agents"`
	} `yaml:"audit"`

	Alerts struct {
		BufferSize  int      `yaml:"buffer_size"`
		PerSecond   float64  `yaml:"per_second"`
		Burst       int      `yaml:"burst"`
		Timeout     Duration `yaml:"timeout"`
		DedupWindow Duration `yaml:"dedup_window"`
	} `yaml:"alerts"`

	Metrics struct {
		Enabled           bool `yaml:"enabled"`
		LatencyHistograms bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`

	Store struct {
		Timeout Duration `yaml:"timeout"`
	} `yaml:"store"`
}

// LoadConfigFile reads a YAML configuration on top of [DefaultConfig] and validates it.
// Key file paths are resolved relative to the file's directory.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(raw, filepath.Dir(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML document. Unknown keys are rejected.
func ParseConfig(raw []byte, baseDir string) (Config, error) {
	fc := toFileConfig(defaultConfig())

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg, err := fc.toConfig(baseDir)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func toFileConfig(c Config) fileConfig {
	var fc fileConfig

	fc.RateLimit.Enabled = c.RateLimit.Enabled
	// policies replace the defaults wholesale when present
	fc.RateLimit.Policies = nil

	fc.Session.IdleTimeout = Duration(c.Session.IdleTimeout)
	fc.Session.MaxTokenLifetime = Duration(c.Session.MaxTokenLifetime)

	fc.Token.HeaderName = c.Token.HeaderName
	fc.Token.Scheme = c.Token.Scheme
	fc.Token.CookieName = c.Token.CookieName
	fc.Token.SigningMethod = c.Token.SigningMethod
	fc.Token.AccessTTL = Duration(c.Token.AccessTTL)
	fc.Token.KeyID = c.Token.KeyID
	fc.Token.Issuer = c.Token.Issuer
	fc.Token.Audience = c.Token.Audience
	fc.Token.Leeway = Duration(c.Token.Leeway)
	fc.Token.JWKSURL = c.Token.JWKSURL

	fc.CORS.Enabled = c.CORS.Enabled
	fc.CORS.AllowedOrigins = c.CORS.AllowedOrigins
	fc.CORS.AllowedMethods = c.CORS.AllowedMethods
	fc.CORS.AllowedHeaders = c.CORS.AllowedHeaders
	fc.CORS.ExposedHeaders = c.CORS.ExposedHeaders
	fc.CORS.AllowCredentials = c.CORS.AllowCredentials
	fc.CORS.MaxAge = Duration(c.CORS.MaxAge)
	fc.CORS.SecurityHeaders = c.CORS.SecurityHeaders
	fc.CORS.HSTSMaxAge = Duration(c.CORS.HSTSMaxAge)

	fc.TrustedProxies = c.Network.TrustedProxies

	fc.Audit.Enabled = c.Audit.Enabled
	fc.Audit.BufferSize = c.Audit.BufferSize
	fc.Audit.DropIfFull = c.Audit.DropIfFull
	fc.Audit.SinkTimeout = Duration(c.Audit.SinkTimeout)
	fc.Audit.SuspiciousIPs = c.Audit.SuspiciousIPs
	fc.Audit.SuspiciousUserAgents = c.Audit.SuspiciousUserAgents

	fc.Alerts.BufferSize = c.Alerts.BufferSize
	fc.Alerts.PerSecond = c.Alerts.PerSecond
	fc.Alerts.Burst = c.Alerts.Burst
	fc.Alerts.Timeout = Duration(c.Alerts.Timeout)
	fc.Alerts.DedupWindow = Duration(c.Alerts.DedupWindow)

	fc.Metrics.Enabled = c.Metrics.Enabled
	fc.Metrics.LatencyHistograms = c.Metrics.EnableLatencyHistograms

	fc.Store.Timeout = Duration(c.Store.Timeout)
	return fc
}

func (fc fileConfig) toConfig(baseDir string) (Config, error) {
	c := defaultConfig()

	c.RateLimit.Enabled = fc.RateLimit.Enabled
	if len(fc.RateLimit.Policies) > 0 {
		c.RateLimit.Policies = make(map[string]RatePolicy, len(fc.RateLimit.Policies))
		for path, p := range fc.RateLimit.Policies {
			c.RateLimit.Policies[path] = RatePolicy{
				Limit:         p.Limit,
				Window:        time.Duration(p.Window),
				BlockDuration: time.Duration(p.BlockDuration),
			}
		}
	}

	c.Session.IdleTimeout = time.Duration(fc.Session.IdleTimeout)
	c.Session.MaxTokenLifetime = time.Duration(fc.Session.MaxTokenLifetime)

	t := fc.Token
	c.Token.HeaderName = t.HeaderName
	c.Token.Scheme = t.Scheme
	c.Token.CookieName = t.CookieName
	c.Token.SigningMethod = t.SigningMethod
	c.Token.AccessTTL = time.Duration(t.AccessTTL)
	c.Token.KeyID = t.KeyID
	c.Token.Issuer = t.Issuer
	c.Token.Audience = t.Audience
	c.Token.Leeway = time.Duration(t.Leeway)
	c.Token.JWKSURL = t.JWKSURL

	var err error
	if c.Token.PrivateKey, err = readKeyFile(baseDir, t.PrivateKeyFile); err != nil {
		return Config{}, err
	}
	if c.Token.PublicKey, err = readKeyFile(baseDir, t.PublicKeyFile); err != nil {
		return Config{}, err
	}

	c.Permissions.Roles = fc.Roles
	for _, r := range fc.Routes {
		c.Routes = append(c.Routes, Route{
			Prefix:      r.Prefix,
			RequireAuth: r.RequireAuth,
			Action:      r.Action,
			Resource:    r.Resource,
			Login:       r.Login,
		})
	}

	c.CORS = CORSConfig{
		Enabled:          fc.CORS.Enabled,
		AllowedOrigins:   fc.CORS.AllowedOrigins,
		AllowedMethods:   fc.CORS.AllowedMethods,
		AllowedHeaders:   fc.CORS.AllowedHeaders,
		ExposedHeaders:   fc.CORS.ExposedHeaders,
		AllowCredentials: fc.CORS.AllowCredentials,
		MaxAge:           time.Duration(fc.CORS.MaxAge),
		SecurityHeaders:  fc.CORS.SecurityHeaders,
		HSTSMaxAge:       time.Duration(fc.CORS.HSTSMaxAge),
	}
	c.Network.TrustedProxies = fc.TrustedProxies

	c.Audit = AuditConfig{
		Enabled:              fc.Audit.Enabled,
		BufferSize:           fc.Audit.BufferSize,
		DropIfFull:           fc.Audit.DropIfFull,
		SinkTimeout:          time.Duration(fc.Audit.SinkTimeout),
		SuspiciousIPs:        fc.Audit.SuspiciousIPs,
		SuspiciousUserAgents: fc.Audit.SuspiciousUserAgents,
	}
	c.Alerts = AlertConfig{
		BufferSize:  fc.Alerts.BufferSize,
		PerSecond:   fc.Alerts.PerSecond,
		Burst:       fc.Alerts.Burst,
		Timeout:     time.Duration(fc.Alerts.Timeout),
		DedupWindow: time.Duration(fc.Alerts.DedupWindow),
	}
	c.Metrics = MetricsConfig{
		Enabled:                 fc.Metrics.Enabled,
		EnableLatencyHistograms: fc.Metrics.LatencyHistograms,
	}
	c.Store.Timeout = time.Duration(fc.Store.Timeout)

	return c, nil
}

func readKeyFile(baseDir, name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}
	if !filepath.IsAbs(name) && baseDir != "" {
		name = filepath.Join(baseDir, name)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: key file: %v", ErrInvalidConfig, err)
	}
	return b, nil
}
