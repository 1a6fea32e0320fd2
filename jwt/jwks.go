package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/session"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

// JWKSConfig configures a [JWKSVerifier].
type JWKSConfig struct {
	// URL of the remote key set. Ignored when KeySet is set.
	URL string
	// KeySet verifies against a fixed set instead of fetching one.
	KeySet jwk.Set

	Issuer   string
	Audience string
	Leeway   time.Duration
	// RoleClaim names the private claim carrying the role. Defaults to "role".
	RoleClaim string
	// MinRefreshInterval bounds how often the remote set is re-fetched. Defaults to 15m.
	MinRefreshInterval time.Duration
	FetchTimeout       time.Duration
}

// JWKSVerifier verifies tokens signed by keys published in a JWK set.
type JWKSVerifier struct {
	cfg    JWKSConfig
	cache  *jwk.Cache
	static jwk.Set
}

// NewJWKSVerifier registers cfg.URL with a refreshing cache and performs the first fetch.
// The cache stops refreshing when ctx is cancelled.
func NewJWKSVerifier(ctx context.Context, cfg JWKSConfig) (*JWKSVerifier, error) {
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = 15 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	v := &JWKSVerifier{cfg: cfg}
	if cfg.KeySet != nil {
		v.static = cfg.KeySet
		return v, nil
	}

	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("jwks verifier requires a URL or a key set")
	}

	v.cache = jwk.NewCache(ctx)
	if err := v.cache.Register(cfg.URL, jwk.WithMinRefreshInterval(cfg.MinRefreshInterval)); err != nil {
		return nil, fmt.Errorf("register jwks %s: %w", cfg.URL, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()
	if _, err := v.cache.Refresh(fetchCtx, cfg.URL); err != nil {
		return nil, fmt.Errorf("fetch jwks %s: %w", cfg.URL, err)
	}

	return v, nil
}

func (v *JWKSVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	if v.static != nil {
		return v.static, nil
	}
	ctx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	defer cancel()
	return v.cache.Get(ctx, v.cfg.URL)
}

// Verify implements [Verifier]. Every failure wraps [ErrInvalidToken].
func (v *JWKSVerifier) Verify(ctx context.Context, tokenStr string) (session.Claims, error) {
	set, err := v.keySet(ctx)
	if err != nil {
		return session.Claims{}, fmt.Errorf("%w: key set unavailable: %v", ErrInvalidToken, err)
	}

	parseOpts := []jwxjwt.ParseOption{
		jwxjwt.WithKeySet(set),
		jwxjwt.WithValidate(true),
		jwxjwt.WithRequiredClaim(jwxjwt.ExpirationKey),
		jwxjwt.WithRequiredClaim(jwxjwt.IssuedAtKey),
	}
	if v.cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwxjwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		parseOpts = append(parseOpts, jwxjwt.WithAudience(v.cfg.Audience))
	}
	if v.cfg.Leeway > 0 {
		parseOpts = append(parseOpts, jwxjwt.WithAcceptableSkew(v.cfg.Leeway))
	}

	token, err := jwxjwt.Parse([]byte(tokenStr), parseOpts...)
	if err != nil {
		return session.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.JwtID() == "" || token.Subject() == "" {
		return session.Claims{}, fmt.Errorf("%w: missing jti or sub", ErrInvalidToken)
	}

	claims := session.Claims{
		JTI:       token.JwtID(),
		UserID:    token.Subject(),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}
	if raw, ok := token.Get(v.cfg.RoleClaim); ok {
		if role, ok := raw.(string); ok {
			claims.Role = role
		}
	}
	return claims, nil
}

var (
	_ Verifier = (*Manager)(nil)
	_ Verifier = (*JWKSVerifier)(nil)
)
