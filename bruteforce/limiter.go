package bruteforce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the limiter backend is unreachable. Checks that
// return it have already degraded to their fail-open result.
var ErrUnavailable = errors.New("brute force backend unavailable")

// Config holds limiter tuning parameters.
type Config struct {
	// MaxAttempts is the per-email failure threshold within AttemptWindow.
	MaxAttempts int
	// AttemptWindow is the counter TTL. The window slides from the first
	// failure, not from fixed time buckets.
	AttemptWindow time.Duration
	// LockoutDuration is the lockout key TTL, independent of the counter.
	LockoutDuration time.Duration
	// IPThresholdMultiplier scales MaxAttempts for per-IP counting. An IP
	// serving many users behind NAT legitimately fails more often than one
	// account, so the IP threshold sits higher.
	IPThresholdMultiplier int
	// OperationTimeout caps each Redis round-trip so a slow store cannot
	// hang the request path.
	OperationTimeout time.Duration
}

// Status reports the limiter's view of one identifier.
type Status struct {
	Count      int
	Locked     bool
	RetryAfter time.Duration
}

// Strategy is the injectable rate-limit backend. The Redis-backed [Limiter]
// is the production implementation; [MemoryLimiter] exists for single-process
// use and deterministic tests.
type Strategy interface {
	IsLockedOut(ctx context.Context, email, ip string) (bool, error)
	RecordFailure(ctx context.Context, email, ip string) (bool, error)
	RecordSuccess(ctx context.Context, email, ip string) error
	Status(ctx context.Context, identifier string) (Status, error)
}

// Limiter enforces per-email and per-IP attempt budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

var _ Strategy = (*Limiter)(nil)

// New creates a Redis-backed limiter.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.IPThresholdMultiplier < 1 {
		cfg.IPThresholdMultiplier = 1
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 2 * time.Second
	}
	return &Limiter{redis: redisClient, config: cfg}
}

func hashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

func attemptsKey(identifier string) string {
	return "auth_attempts:" + hashIdentifier(identifier)
}

func lockoutKey(identifier string) string {
	return "auth_lockout:" + hashIdentifier(identifier)
}

func (l *Limiter) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.config.OperationTimeout)
}

// IsLockedOut reports whether the email, or the IP when given, is currently
// locked. Fail-open: a backend error yields (false, ErrUnavailable).
func (l *Limiter) IsLockedOut(ctx context.Context, email, ip string) (bool, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	keys := []string{lockoutKey(email)}
	if ip != "" {
		keys = append(keys, lockoutKey(ip))
	}

	n, err := l.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure increments the email counter and, when given, the IP counter.
// It returns true if either counter newly crossed its threshold and a lockout
// was written. Fail-open on backend errors.
func (l *Limiter) RecordFailure(ctx context.Context, email, ip string) (bool, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	locked, err := l.bumpCounter(ctx, email, l.config.MaxAttempts)
	if err != nil {
		return false, err
	}

	if ip != "" {
		ipLocked, err := l.bumpCounter(ctx, ip, l.config.MaxAttempts*l.config.IPThresholdMultiplier)
		if err != nil {
			return locked, err
		}
		locked = locked || ipLocked
	}

	return locked, nil
}

func (l *Limiter) bumpCounter(ctx context.Context, identifier string, threshold int) (bool, error) {
	count, err := l.redis.Incr(ctx, attemptsKey(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Window starts at the first failure.
	if count == 1 {
		if err := l.redis.Expire(ctx, attemptsKey(identifier), l.config.AttemptWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count < int64(threshold) {
		return false, nil
	}

	set, err := l.redis.SetNX(ctx, lockoutKey(identifier), "1", l.config.LockoutDuration).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return set, nil
}

// RecordSuccess clears the attempt counters and any lockout for the email
// and IP. A successful login fully resets failure history.
func (l *Limiter) RecordSuccess(ctx context.Context, email, ip string) error {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	keys := []string{attemptsKey(email), lockoutKey(email)}
	if ip != "" {
		keys = append(keys, attemptsKey(ip), lockoutKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Status returns the current count, lock state, and remaining lockout for one
// identifier. Missing keys report zero without revealing account existence.
func (l *Limiter) Status(ctx context.Context, identifier string) (Status, error) {
	ctx, cancel := l.opCtx(ctx)
	defer cancel()

	var st Status

	count, err := l.redis.Get(ctx, attemptsKey(identifier)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return st, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st.Count = int(count)

	ttl, err := l.redis.TTL(ctx, lockoutKey(identifier)).Result()
	if err != nil {
		return st, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl > 0 {
		st.Locked = true
		st.RetryAfter = ttl
	}

	return st, nil
}
