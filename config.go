package securecore

import (
	"errors"
	"time"
)

// Config defines a public type used by securecore APIs.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Config struct {
	JWT        JWTConfig
	Session    SessionConfig
	Password   PasswordConfig
	BruteForce BruteForceConfig
	Blacklist  BlacklistConfig
	CSRF       CSRFConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token issuance. HS256 is the default; Ed25519 is
// supported for deployments that separate signing and verification keys.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the session store and its concurrency cap.
type SessionConfig struct {
	RedisPrefix           string
	SessionTimeout        time.Duration
	MaxConcurrentSessions int
	// OperationTimeout caps each session store round-trip; on expiry the
	// lookup degrades to "session not found" instead of hanging the request.
	OperationTimeout time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures bcrypt hashing. MaxConcurrentHashes bounds the
// number of hash computations in flight so CPU-bound bcrypt work cannot
// starve request goroutines.
type PasswordConfig struct {
	BcryptCost          int
	MaxConcurrentHashes int
}

/*
====================================
BRUTE FORCE CONFIG
====================================
*/

// BruteForceConfig configures the failed-attempt counters and lockout.
// The per-IP threshold is MaxAttempts * IPThresholdMultiplier: one IP probing
// many accounts tolerates more raw attempts than one account being probed.
type BruteForceConfig struct {
	MaxAttempts           int
	AttemptWindow         time.Duration
	LockoutDuration       time.Duration
	IPThresholdMultiplier int
	OperationTimeout      time.Duration
}

/*
====================================
BLACKLIST CONFIG
====================================
*/

// BlacklistConfig configures token revocation entries. DefaultTTL applies when
// the revoked token carries no readable expiry claim.
type BlacklistConfig struct {
	DefaultTTL time.Duration
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig configures stateless CSRF tokens. The secret must be high-entropy
// and server-held; tokens cannot be revoked before TokenLifetime elapses.
type CSRFConfig struct {
	Secret        []byte
	TokenLifetime time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds cross-cutting hardening knobs.
//
// MinAuthDuration pads every AuthenticateUser return path to a minimum
// wall-clock duration so that the locked-out fast path, the unknown-email
// path, and the wrong-password path are indistinguishable by timing.
type SecurityConfig struct {
	MinAuthDuration time.Duration
	RejectBots      bool
}

// DefaultConfig returns the engine defaults. Secrets (JWT.PrivateKey,
// CSRF.Secret) are intentionally empty and must be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "mestore",
		},
		Session: SessionConfig{
			RedisPrefix:           "",
			SessionTimeout:        60 * time.Minute,
			MaxConcurrentSessions: 3,
			OperationTimeout:      2 * time.Second,
		},
		Password: PasswordConfig{
			BcryptCost:          12,
			MaxConcurrentHashes: 8,
		},
		BruteForce: BruteForceConfig{
			MaxAttempts:           5,
			AttemptWindow:         15 * time.Minute,
			LockoutDuration:       30 * time.Minute,
			IPThresholdMultiplier: 2,
			OperationTimeout:      2 * time.Second,
		},
		Blacklist: BlacklistConfig{
			DefaultTTL: time.Hour,
		},
		CSRF: CSRFConfig{
			TokenLifetime: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			MinAuthDuration: 100 * time.Millisecond,
			RejectBots:      true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.JWT.PrivateKey != nil {
		out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	}
	if cfg.JWT.PublicKey != nil {
		out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	}
	if cfg.CSRF.Secret != nil {
		out.CSRF.Secret = append([]byte(nil), cfg.CSRF.Secret...)
	}
	return out
}

// Validate checks the configuration for values that would weaken or break the
// engine. It is called by [Builder.Build]; direct users of sub-packages should
// call it themselves.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT.RefreshTTL must exceed JWT.AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT.PrivateKey required")
	}
	if c.Session.SessionTimeout <= 0 {
		return errors.New("Session.SessionTimeout must be > 0")
	}
	if c.Session.MaxConcurrentSessions <= 0 {
		return errors.New("Session.MaxConcurrentSessions must be > 0")
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password.BcryptCost out of range")
	}
	if c.Password.MaxConcurrentHashes <= 0 {
		return errors.New("Password.MaxConcurrentHashes must be > 0")
	}
	if c.BruteForce.MaxAttempts <= 1 {
		return errors.New("BruteForce.MaxAttempts must be > 1")
	}
	if c.BruteForce.AttemptWindow <= 0 || c.BruteForce.LockoutDuration <= 0 {
		return errors.New("BruteForce windows must be > 0")
	}
	if c.BruteForce.IPThresholdMultiplier < 1 {
		return errors.New("BruteForce.IPThresholdMultiplier must be >= 1")
	}
	if c.Blacklist.DefaultTTL <= 0 {
		return errors.New("Blacklist.DefaultTTL must be > 0")
	}
	if len(c.CSRF.Secret) < 32 {
		return errors.New("CSRF.Secret must be at least 32 bytes")
	}
	if c.CSRF.TokenLifetime <= 0 {
		return errors.New("CSRF.TokenLifetime must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Security.MinAuthDuration < 0 {
		return errors.New("Security.MinAuthDuration must be >= 0")
	}
	return nil
}
