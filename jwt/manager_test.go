package jwt

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "mestore-test",
	}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, err := m.CreateAccess("u-1", "alice@test.com", "buyer", "sid-1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Fatalf("sub = %q, want u-1", claims.Subject)
	}
	if claims.Email != "alice@test.com" || claims.UserType != "buyer" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != TypeAccess {
		t.Fatalf("typ = %q, want access", claims.TokenType)
	}
	if claims.SessionID != "sid-1" {
		t.Fatalf("sid = %q, want sid-1", claims.SessionID)
	}
	if claims.ID == "" {
		t.Fatal("jti missing")
	}
}

func TestRefreshTokenCarriesRefreshType(t *testing.T) {
	m := newTestManager(t, testConfig())

	token, err := m.CreateRefresh("u-1", "alice@test.com", "buyer", "")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.TokenType != TypeRefresh {
		t.Fatalf("typ = %q, want refresh", claims.TokenType)
	}
}

func TestExpiredTokenDistinctError(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = time.Nanosecond
	m := newTestManager(t, cfg)

	token, err := m.CreateAccess("u-1", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := m.Parse(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	m := newTestManager(t, testConfig())
	token, _ := m.CreateAccess("u-1", "", "", "")

	other := testConfig()
	other.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	m2 := newTestManager(t, other)

	if _, err := m2.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	m := newTestManager(t, testConfig())
	if _, err := m.Parse("definitely.not.a-jwt"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := testConfig()
	cfg.SigningMethod = MethodEd25519
	cfg.PrivateKey = priv
	cfg.PublicKey = pub
	m := newTestManager(t, cfg)

	token, err := m.CreateAccess("u-1", "a@b.c", "vendor", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Fatalf("sub = %q", claims.Subject)
	}
}

func TestUnverifiedExpiry(t *testing.T) {
	m := newTestManager(t, testConfig())
	token, _ := m.CreateAccess("u-1", "", "", "")

	exp, ok := m.UnverifiedExpiry(token)
	if !ok {
		t.Fatal("expiry not found")
	}
	until := time.Until(exp)
	if until <= 0 || until > time.Minute+time.Second {
		t.Fatalf("unexpected expiry horizon: %v", until)
	}

	if _, ok := m.UnverifiedExpiry("garbage"); ok {
		t.Fatal("expiry reported for garbage token")
	}
}
