package bruteforce

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryLimiter is an in-process [Strategy] on top of ttlcache. It exists for
// single-process deployments and deterministic tests; it must not be used
// behind multiple processes, where each replica would count attempts
// independently and lockouts would never converge.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts *ttlcache.Cache[string, int]
	lockouts *ttlcache.Cache[string, struct{}]
	config   Config
}

var _ Strategy = (*MemoryLimiter)(nil)

// NewMemory creates an in-process limiter with the same window semantics as
// the Redis-backed one.
func NewMemory(cfg Config) *MemoryLimiter {
	if cfg.IPThresholdMultiplier < 1 {
		cfg.IPThresholdMultiplier = 1
	}

	attempts := ttlcache.New(
		ttlcache.WithTTL[string, int](cfg.AttemptWindow),
		ttlcache.WithDisableTouchOnHit[string, int](),
	)
	lockouts := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](cfg.LockoutDuration),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go attempts.Start()
	go lockouts.Start()

	return &MemoryLimiter{attempts: attempts, lockouts: lockouts, config: cfg}
}

// Stop halts the background expiration goroutines.
func (m *MemoryLimiter) Stop() {
	m.attempts.Stop()
	m.lockouts.Stop()
}

// IsLockedOut implements [Strategy].
func (m *MemoryLimiter) IsLockedOut(_ context.Context, email, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockouts.Get(hashIdentifier(email)) != nil {
		return true, nil
	}
	if ip != "" && m.lockouts.Get(hashIdentifier(ip)) != nil {
		return true, nil
	}
	return false, nil
}

// RecordFailure implements [Strategy].
func (m *MemoryLimiter) RecordFailure(_ context.Context, email, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	locked := m.bump(email, m.config.MaxAttempts)
	if ip != "" {
		locked = m.bump(ip, m.config.MaxAttempts*m.config.IPThresholdMultiplier) || locked
	}
	return locked, nil
}

func (m *MemoryLimiter) bump(identifier string, threshold int) bool {
	key := hashIdentifier(identifier)

	count := 1
	if item := m.attempts.Get(key); item != nil {
		count = item.Value() + 1
	}
	// Preserve the original window: the TTL is not extended on later hits.
	ttl := m.config.AttemptWindow
	if item := m.attempts.Get(key); item != nil {
		ttl = time.Until(item.ExpiresAt())
		if ttl <= 0 {
			ttl = m.config.AttemptWindow
		}
	}
	m.attempts.Set(key, count, ttl)

	if count < threshold {
		return false
	}
	if m.lockouts.Get(key) != nil {
		return false
	}
	m.lockouts.Set(key, struct{}{}, m.config.LockoutDuration)
	return true
}

// RecordSuccess implements [Strategy].
func (m *MemoryLimiter) RecordSuccess(_ context.Context, email, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, identifier := range []string{email, ip} {
		if identifier == "" {
			continue
		}
		key := hashIdentifier(identifier)
		m.attempts.Delete(key)
		m.lockouts.Delete(key)
	}
	return nil
}

// Status implements [Strategy].
func (m *MemoryLimiter) Status(_ context.Context, identifier string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st Status
	key := hashIdentifier(identifier)
	if item := m.attempts.Get(key); item != nil {
		st.Count = item.Value()
	}
	if item := m.lockouts.Get(key); item != nil {
		st.Locked = true
		st.RetryAfter = time.Until(item.ExpiresAt())
	}
	return st, nil
}
