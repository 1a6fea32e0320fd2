package jwt

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newEdManager(t *testing.T, priv ed25519.PrivateKey) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "goguard",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func signEd(t *testing.T, priv ed25519.PrivateKey, claims AccessClaims) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestCreateAccessVerifyRoundTrip(t *testing.T) {
	_, priv := newEdKeys(t)
	m := newEdManager(t, priv)

	token, jti, err := m.CreateAccess("u1", "moderator")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if jti == "" {
		t.Fatal("expected jti")
	}

	claims, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.JTI != jti || claims.UserID != "u1" || claims.Role != "moderator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.IssuedAt.IsZero() || !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Fatalf("unexpected token times: %+v", claims)
	}

	_, jti2, err := m.CreateAccess("u1", "moderator")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if jti2 == jti {
		t.Fatal("expected unique jti per token")
	}
}

func TestCreateAccessRequiresUser(t *testing.T) {
	_, priv := newEdKeys(t)
	m := newEdManager(t, priv)
	if _, _, err := m.CreateAccess(" ", "user"); err == nil {
		t.Fatal("expected empty user id to fail")
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ID:        "j1",
		Subject:   "u1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m := newEdManager(t, priv)
	now := time.Now()

	base := func() AccessClaims {
		return AccessClaims{Role: "user", RegisteredClaims: gjwt.RegisteredClaims{
			ID:        "j1",
			Subject:   "u1",
			Issuer:    "goguard",
			Audience:  gjwt.ClaimStrings{"api"},
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(now),
		}}
	}

	tests := []struct {
		name   string
		mutate func(*AccessClaims)
		ok     bool
	}{
		{"valid", func(*AccessClaims) {}, true},
		{"wrong issuer", func(c *AccessClaims) { c.Issuer = "other" }, false},
		{"wrong audience", func(c *AccessClaims) { c.Audience = gjwt.ClaimStrings{"other-api"} }, false},
		{"expired within leeway", func(c *AccessClaims) {
			c.ExpiresAt = gjwt.NewNumericDate(now.Add(-15 * time.Second))
		}, true},
		{"expired", func(c *AccessClaims) {
			c.ExpiresAt = gjwt.NewNumericDate(now.Add(-2 * time.Minute))
		}, false},
		{"missing exp", func(c *AccessClaims) { c.ExpiresAt = nil }, false},
		{"missing jti", func(c *AccessClaims) { c.ID = "" }, false},
		{"missing sub", func(c *AccessClaims) { c.Subject = "" }, false},
		{"missing iat", func(c *AccessClaims) { c.IssuedAt = nil }, false},
		{"iat far in future", func(c *AccessClaims) {
			c.IssuedAt = gjwt.NewNumericDate(now.Add(time.Hour))
			c.ExpiresAt = gjwt.NewNumericDate(now.Add(2 * time.Hour))
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			_, err := m.Verify(context.Background(), signEd(t, priv, c))
			if tt.ok && err != nil {
				t.Fatalf("expected token to verify: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ID:        "j1",
		Subject:   "u1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Verify(context.Background(), token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, _, err := m.CreateAccess("u1", "user")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.Verify(context.Background(), good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Verify(context.Background(), good); err == nil {
		t.Fatal("expected failure with mismatched key set")
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, jti, err := m.CreateAccess("u9", "guest")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.JTI != jti || claims.Role != "guest" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := map[string]Config{
		"zero ttl":       {SigningMethod: MethodEd25519, PublicKey: pub},
		"huge leeway":    {AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour},
		"short secret":   {AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"no ed key":      {AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		"unknown method": {AccessTTL: time.Minute, SigningMethod: "rs256"},
		"kid not in set": {AccessTTL: time.Minute, SigningMethod: MethodEd25519, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": pub}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}
