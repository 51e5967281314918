package securecore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mestore/securecore/blacklist"
	"github.com/mestore/securecore/bruteforce"
	"github.com/mestore/securecore/csrf"
	"github.com/mestore/securecore/jwt"
	"github.com/mestore/securecore/password"
	"github.com/mestore/securecore/session"
)

// Service is the top-level authentication entry point. Construct it through
// [Builder.Build]; all methods are safe for concurrent use afterwards.
type Service struct {
	config    Config
	users     UserProvider
	hasher    *password.Hasher
	tokens    *jwt.Manager
	csrf      *csrf.Manager
	rateLimit bruteforce.Strategy
	revoked   *blacklist.Blacklist
	sessions  *session.Service
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close drains the audit dispatcher. The Service must not be used afterwards.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

func (s *Service) metricInc(id MetricID) {
	if s != nil {
		s.metrics.Inc(id)
	}
}

func (s *Service) emit(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.audit.Emit(ctx, event)
}

/*
====================================
AUTHENTICATION
====================================
*/

// AuthenticateUser verifies credentials for an inbound login attempt.
//
// The check order is fixed: lockout, account lookup, password verification,
// counter update. Every failure collapses to [ErrInvalidCredentials] — the
// caller must never learn whether the account exists, is inactive, or is
// locked. Every return path, the lockout fast path included, is padded to
// Security.MinAuthDuration so response timing does not leak that distinction
// either. When an account does not exist, a placeholder hash computed at the
// real bcrypt cost is verified anyway to keep the path equally slow.
func (s *Service) AuthenticateUser(ctx context.Context, email, plainPassword, ip, userAgent string) (*User, error) {
	if s == nil || s.users == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer s.padAuthTiming(start)

	fail := func(reason string) (*User, error) {
		s.metricInc(MetricLoginFailure)
		s.emit(ctx, AuditEvent{
			EventType: EventLoginFailure,
			Email:     email,
			IP:        ip,
			UserAgent: userAgent,
			Success:   false,
			Error:     reason,
		})
		return nil, ErrInvalidCredentials
	}

	locked, err := s.rateLimit.IsLockedOut(ctx, email, ip)
	if err != nil {
		// Fail open: a cache outage must not block all logins, but it is
		// never silent.
		s.emit(ctx, AuditEvent{
			EventType: EventLoginFailure,
			Email:     email,
			IP:        ip,
			Success:   false,
			Error:     "rate limit degraded: " + err.Error(),
			Metadata:  map[string]string{"degraded": "fail-open"},
		})
	}
	if locked {
		// Burn a dummy verification so the lockout fast path costs the
		// same as a full one even if padding is disabled.
		s.hasher.VerifyDummy(ctx, plainPassword)
		return fail("account locked out")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.hasher.VerifyDummy(ctx, plainPassword)
		s.recordFailure(ctx, email, ip)
		if errors.Is(err, ErrUserNotFound) {
			return fail("unknown account")
		}
		return fail("account lookup failed: " + err.Error())
	}

	if !user.IsActive {
		// Real verification, result discarded: inactive accounts answer in
		// the same time as active ones.
		s.hasher.Verify(ctx, plainPassword, user.PasswordHash)
		s.recordFailure(ctx, email, ip)
		return fail("account inactive")
	}

	if !s.hasher.Verify(ctx, plainPassword, user.PasswordHash) {
		s.recordFailure(ctx, email, ip)
		return fail("password mismatch")
	}

	if err := s.rateLimit.RecordSuccess(ctx, email, ip); err != nil {
		s.emit(ctx, AuditEvent{
			EventType: EventLoginSuccess,
			UserID:    user.ID,
			Email:     email,
			IP:        ip,
			Success:   true,
			Error:     "counter reset degraded: " + err.Error(),
		})
	}

	s.metricInc(MetricLoginSuccess)
	s.emit(ctx, AuditEvent{
		EventType: EventLoginSuccess,
		UserID:    user.ID,
		Email:     email,
		IP:        ip,
		UserAgent: userAgent,
		Success:   true,
	})
	return user, nil
}

func (s *Service) recordFailure(ctx context.Context, email, ip string) {
	newlyLocked, err := s.rateLimit.RecordFailure(ctx, email, ip)
	if err != nil {
		return // fail open; already surfaced by the check path
	}
	if newlyLocked {
		s.metricInc(MetricLockoutTriggered)
		s.emit(ctx, AuditEvent{
			EventType: EventLockoutTriggered,
			Email:     email,
			IP:        ip,
			Success:   false,
			Error:     "failed attempt threshold reached",
		})
	}
}

// padAuthTiming sleeps out the remainder of the minimum authentication
// duration. Runs on every AuthenticateUser return path.
func (s *Service) padAuthTiming(start time.Time) {
	minDuration := s.config.Security.MinAuthDuration
	if minDuration <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed < minDuration {
		time.Sleep(minDuration - elapsed)
	}
}

// GetPasswordHash validates the candidate against the password policy and
// hashes it. Policy violations surface as descriptive errors wrapping
// [ErrWeakPassword]; this is registration-time feedback and leaks nothing
// about existing accounts.
func (s *Service) GetPasswordHash(ctx context.Context, plainPassword string) (string, error) {
	if err := password.ValidatePolicy(plainPassword); err != nil {
		var policyErr *password.PolicyError
		if errors.As(err, &policyErr) {
			return "", fmt.Errorf("%w: %s", ErrWeakPassword, policyErr.Reason)
		}
		return "", fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	return s.hasher.Hash(ctx, plainPassword)
}

// VerifyPassword reports whether plain matches hashed.
func (s *Service) VerifyPassword(ctx context.Context, plain, hashed string) bool {
	return s.hasher.Verify(ctx, plain, hashed)
}

/*
====================================
TOKENS
====================================
*/

// GenerateTokens issues an access/refresh pair for an authenticated user.
func (s *Service) GenerateTokens(ctx context.Context, user *User) (*TokenPair, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("user required")
	}

	access, err := s.tokens.CreateAccess(user.ID, user.Email, user.UserType, "")
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.CreateRefresh(user.ID, user.Email, user.UserType, "")
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricTokensIssued)
	s.emit(ctx, AuditEvent{
		EventType: EventTokensIssued,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// RevokeToken blacklists a token until the moment it would have expired on
// its own. Malformed tokens are still revocable (default TTL applies); the
// raw string is hashed before storage.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token required")
	}

	var expiresAt time.Time
	if exp, ok := s.tokens.UnverifiedExpiry(token); ok {
		expiresAt = exp
	}

	if err := s.revoked.Add(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metricInc(MetricTokenRevoked)
	s.emit(ctx, AuditEvent{
		EventType: EventTokenRevoked,
		Success:   true,
	})
	return nil
}

// ValidateToken checks the blacklist and then the token's signature and
// claims, returning the authenticated principal.
//
// The blacklist is consulted FIRST: a revoked token is rejected with
// [ErrTokenRevoked] even while cryptographically valid, and the error is
// distinct from [ErrTokenExpired] and [ErrTokenInvalid] so clients can tell
// an intentional logout from a malformed credential. A store outage here
// fails closed.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	revoked, err := s.revoked.Contains(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		s.metricInc(MetricTokenRejected)
		return nil, ErrTokenRevoked
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.metricInc(MetricTokenRejected)
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	principal := &Principal{
		UserID:    claims.Subject,
		Email:     claims.Email,
		UserType:  claims.UserType,
		SessionID: claims.SessionID,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

/*
====================================
SESSIONS
====================================
*/

// CreateSession opens a session after successful authentication.
func (s *Service) CreateSession(ctx context.Context, userID, email, userType, userAgent, ip, loginSource string) (*session.Data, error) {
	data, evicted, err := s.sessions.Create(ctx, userID, email, userType, userAgent, ip, loginSource)
	if err != nil {
		if errors.Is(err, session.ErrBotRejected) {
			return nil, ErrBotRejected
		}
		return nil, err
	}

	for i := 0; i < evicted; i++ {
		s.metricInc(MetricSessionEvicted)
	}
	s.metricInc(MetricSessionCreated)
	s.emit(ctx, AuditEvent{
		EventType: EventSessionCreated,
		UserID:    userID,
		Email:     email,
		SessionID: data.SessionID,
		IP:        ip,
		UserAgent: userAgent,
		Success:   true,
	})
	return data, nil
}

// ValidateSession checks a session against the current request's device
// fingerprint. Warnings flag anomalies without invalidating the session; on
// success the sliding expiry is refreshed.
//
// A store outage fails open: the session reads as gone (or, when the outage
// hit only the expiry refresh, as still valid) and the degradation is
// audited rather than returned as an error.
func (s *Service) ValidateSession(ctx context.Context, sessionID, userAgent, ip string) (*session.Data, []string, error) {
	data, warnings, err := s.sessions.Validate(ctx, sessionID, userAgent, ip)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrUnavailable):
		s.emit(ctx, AuditEvent{
			EventType: EventSessionAnomaly,
			SessionID: sessionID,
			IP:        ip,
			UserAgent: userAgent,
			Success:   false,
			Error:     "session store degraded: " + err.Error(),
			Metadata:  map[string]string{"degraded": "fail-open"},
		})
		return data, warnings, nil
	default:
		return nil, nil, err
	}
	if data == nil {
		return nil, warnings, nil
	}

	if len(warnings) > 0 {
		s.metricInc(MetricSessionAnomaly)
		s.emit(ctx, AuditEvent{
			EventType: EventSessionAnomaly,
			UserID:    data.UserID,
			SessionID: sessionID,
			IP:        ip,
			UserAgent: userAgent,
			Success:   true,
			Metadata:  map[string]string{"warnings": fmt.Sprintf("%v", warnings)},
		})
	}
	return data, warnings, nil
}

// GetSession loads a session without fingerprint checks or expiry refresh.
// Missing, expired, and corrupt sessions return [ErrSessionNotFound]; so
// does a store outage, which degrades open the same way session validation
// does.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*session.Data, error) {
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrUnavailable) {
			s.emit(ctx, AuditEvent{
				EventType: EventSessionAnomaly,
				SessionID: sessionID,
				Success:   false,
				Error:     "session store degraded: " + err.Error(),
				Metadata:  map[string]string{"degraded": "fail-open"},
			})
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if data == nil {
		return nil, ErrSessionNotFound
	}
	return data, nil
}

// DestroySession removes one session. Idempotent.
func (s *Service) DestroySession(ctx context.Context, sessionID string) (bool, error) {
	existed, err := s.sessions.Destroy(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if existed {
		s.metricInc(MetricSessionDestroyed)
		s.emit(ctx, AuditEvent{
			EventType: EventSessionDestroyed,
			SessionID: sessionID,
			Success:   true,
		})
	}
	return existed, nil
}

// DestroyAllUserSessions logs a user out everywhere and returns the number of
// sessions destroyed.
func (s *Service) DestroyAllUserSessions(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.DestroyAll(ctx, userID)
	if err != nil {
		return n, err
	}
	for i := 0; i < n; i++ {
		s.metricInc(MetricSessionDestroyed)
	}
	if n > 0 {
		s.emit(ctx, AuditEvent{
			EventType: EventSessionDestroyed,
			UserID:    userID,
			Success:   true,
			Metadata:  map[string]string{"destroyed": fmt.Sprintf("%d", n)},
		})
	}
	return n, nil
}

// GetUserSessions lists a user's currently valid sessions.
func (s *Service) GetUserSessions(ctx context.Context, userID string) ([]*session.Data, error) {
	return s.sessions.List(ctx, userID)
}

/*
====================================
CSRF
====================================
*/

// GenerateCSRFToken issues a CSRF token bound to the user.
func (s *Service) GenerateCSRFToken(userID string) (string, error) {
	return s.csrf.Generate(userID)
}

// ValidateCSRFProtection enforces CSRF on a state-changing request. The
// caller passes the token extracted from the X-CSRF-Token header (or the
// X-CSRFToken fallback); an absent token is rejected before any validation
// is attempted.
func (s *Service) ValidateCSRFProtection(ctx context.Context, headerToken, userID string) error {
	if headerToken == "" {
		s.metricInc(MetricCSRFRejected)
		s.emit(ctx, AuditEvent{
			EventType: EventCSRFRejected,
			UserID:    userID,
			Success:   false,
			Error:     "token missing",
		})
		return ErrCSRFMissing
	}
	if !s.csrf.Validate(headerToken, userID) {
		s.metricInc(MetricCSRFRejected)
		s.emit(ctx, AuditEvent{
			EventType: EventCSRFRejected,
			UserID:    userID,
			Success:   false,
			Error:     "token invalid",
		})
		return ErrCSRFInvalid
	}
	return nil
}
