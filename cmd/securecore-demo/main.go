// Command securecore-demo walks the full authentication flow against a real
// or embedded Redis: registration, login, lockout, tokens, revocation,
// sessions, and CSRF. Useful as a smoke test and as living documentation of
// the engine's wiring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mestore/securecore"
)

type envUsers struct {
	byEmail map[string]*securecore.User
}

func (p *envUsers) GetByEmail(_ context.Context, email string) (*securecore.User, error) {
	u, ok := p.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, securecore.ErrUserNotFound
	}
	return u, nil
}

func main() {
	var (
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		email     = flag.String("email", "alice@test.com", "demo account email")
		pass      = flag.String("password", "StrongPass123!", "demo account password")
	)
	flag.Parse()

	// Optional .env; absence is not an error.
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Fatal().Err(err).Msg("start miniredis")
		}
		defer mr.Close()
		addr = mr.Addr()
		logger.Info().Str("addr", addr).Msg("no REDIS_ADDR; using embedded miniredis")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("redis unreachable")
	}

	cfg := securecore.DefaultConfig()
	cfg.Security.MinAuthDuration = 20 * time.Millisecond
	if secret := os.Getenv("SECURECORE_CSRF_SECRET"); secret != "" {
		cfg.CSRF.Secret = []byte(secret)
	} else {
		cfg.CSRF.Secret = []byte("demo-only-csrf-secret-0123456789abcdef")
	}
	if key := os.Getenv("SECURECORE_JWT_SECRET"); key != "" {
		cfg.JWT.PrivateKey = []byte(key)
	} else {
		cfg.JWT.PrivateKey = []byte("demo-only-jwt-signing-secret")
	}

	users := &envUsers{byEmail: map[string]*securecore.User{}}

	svc, err := securecore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(users).
		WithAuditSink(securecore.NewZerologSink(logger.With().Str("component", "audit").Logger())).
		Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}
	defer svc.Close()

	// Registration: policy check + hash.
	hash, err := svc.GetPasswordHash(ctx, *pass)
	if err != nil {
		logger.Fatal().Err(err).Msg("password rejected")
	}
	users.byEmail[strings.ToLower(*email)] = &securecore.User{
		ID:           "u-demo-1",
		Email:        *email,
		UserType:     "buyer",
		PasswordHash: hash,
		IsActive:     true,
	}
	logger.Info().Str("email", *email).Msg("account registered")

	const (
		demoIP = "203.0.113.10"
		demoUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	)

	// A few misses first, to show the counters moving.
	for i := 0; i < 3; i++ {
		if _, err := svc.AuthenticateUser(ctx, *email, "WrongPass!", demoIP, demoUA); !errors.Is(err, securecore.ErrInvalidCredentials) {
			logger.Fatal().Err(err).Msg("unexpected error on bad password")
		}
	}
	logger.Info().Msg("three failed attempts recorded")

	user, err := svc.AuthenticateUser(ctx, *email, *pass, demoIP, demoUA)
	if err != nil {
		logger.Fatal().Err(err).Msg("login failed")
	}
	logger.Info().Str("user_id", user.ID).Msg("login ok; failure counters reset")

	pair, err := svc.GenerateTokens(ctx, user)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue tokens")
	}
	principal, err := svc.ValidateToken(ctx, pair.AccessToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("validate access token")
	}
	logger.Info().Str("sub", principal.UserID).Time("exp", principal.ExpiresAt).Msg("access token valid")

	sess, err := svc.CreateSession(ctx, user.ID, user.Email, user.UserType, demoUA, demoIP, "web")
	if err != nil {
		logger.Fatal().Err(err).Msg("create session")
	}
	logger.Info().Str("session_id", sess.SessionID).Str("browser", sess.Fingerprint.Browser).Msg("session created")

	// Same user from a different network: valid but flagged.
	_, warnings, err := svc.ValidateSession(ctx, sess.SessionID, demoUA, "198.51.100.7")
	if err != nil {
		logger.Fatal().Err(err).Msg("validate session")
	}
	for _, w := range warnings {
		logger.Warn().Str("session_id", sess.SessionID).Msg(w)
	}

	csrfToken, err := svc.GenerateCSRFToken(user.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate csrf token")
	}
	if err := svc.ValidateCSRFProtection(ctx, csrfToken, user.ID); err != nil {
		logger.Fatal().Err(err).Msg("validate csrf token")
	}
	logger.Info().Msg("csrf token valid")

	if err := svc.RevokeToken(ctx, pair.AccessToken); err != nil {
		logger.Fatal().Err(err).Msg("revoke token")
	}
	if _, err := svc.ValidateToken(ctx, pair.AccessToken); !errors.Is(err, securecore.ErrTokenRevoked) {
		logger.Fatal().Err(err).Msg("revoked token was not rejected")
	}
	logger.Info().Msg("revoked token rejected")

	if n, err := svc.DestroyAllUserSessions(ctx, user.ID); err != nil {
		logger.Fatal().Err(err).Msg("destroy sessions")
	} else {
		logger.Info().Int("destroyed", n).Msg("logged out everywhere")
	}

	snap := svc.MetricsSnapshot()
	for id, v := range snap.Counters {
		if v > 0 {
			fmt.Printf("%-24s %d\n", id, v)
		}
	}
}
