package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrBotRejected is returned by Create when the fingerprint classifies
	// the client as an automated agent.
	ErrBotRejected = errors.New("automated client rejected")
	// ErrUnavailable indicates the session backend is unreachable.
	ErrUnavailable = errors.New("session backend unavailable")
)

// WarningSessionGone is the single warning returned by Validate when the
// session does not exist or has expired.
const WarningSessionGone = "session not found or expired"

// Config holds session service tuning parameters.
type Config struct {
	RedisPrefix           string
	SessionTimeout        time.Duration
	MaxConcurrentSessions int
	RejectBots            bool
	// OperationTimeout caps each Redis round-trip so a slow store cannot
	// hang the request path.
	OperationTimeout time.Duration
}

// Service manages the full session lifecycle. Safe for concurrent use.
type Service struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewService creates a session service backed by the given Redis client.
func NewService(redisClient redis.UniversalClient, cfg Config) *Service {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = time.Hour
	}
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = 3
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 2 * time.Second
	}
	return &Service{redis: redisClient, config: cfg, now: time.Now}
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.OperationTimeout)
}

func (s *Service) sessionKey(id string) string {
	if s.config.RedisPrefix != "" {
		return s.config.RedisPrefix + ":session:" + id
	}
	return "session:" + id
}

func (s *Service) userIndexKey(userID string) string {
	if s.config.RedisPrefix != "" {
		return s.config.RedisPrefix + ":user_sessions:" + userID
	}
	return "user_sessions:" + userID
}

// Create opens a new session after a successful authentication. Bots are
// rejected outright when configured. If the user is at the concurrency cap,
// the least-recently-active sessions are evicted to make room: the newest
// login always succeeds. The second return value is the number of sessions
// evicted to admit this one.
func (s *Service) Create(ctx context.Context, userID, email, userType, userAgent, ip, loginSource string) (*Data, int, error) {
	if userID == "" {
		return nil, 0, errors.New("user id required")
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fp := NewFingerprint(userAgent, ip)
	if s.config.RejectBots && fp.IsBot {
		return nil, 0, ErrBotRejected
	}

	switch loginSource {
	case SourceWeb, SourceMobile, SourceAPI:
	case "":
		loginSource = SourceWeb
	default:
		return nil, 0, fmt.Errorf("unknown login source %q", loginSource)
	}

	now := s.now()
	data := &Data{
		SessionID:     uuid.NewString(),
		UserID:        userID,
		Email:         email,
		UserType:      userType,
		Fingerprint:   fp,
		CreatedAt:     now,
		LastActivity:  now,
		ExpiresAt:     now.Add(s.config.SessionTimeout),
		IsActive:      true,
		LoginSource:   loginSource,
		SecurityFlags: map[string]string{},
	}

	evicted, err := s.enforceLimits(ctx, userID)
	if err != nil {
		return nil, evicted, err
	}

	if err := s.persist(ctx, data); err != nil {
		return nil, evicted, err
	}
	if err := s.redis.SAdd(ctx, s.userIndexKey(userID), data.SessionID).Err(); err != nil {
		return nil, evicted, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.redis.Expire(ctx, s.userIndexKey(userID), s.config.SessionTimeout).Err(); err != nil {
		return nil, evicted, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return data, evicted, nil
}

// enforceLimits evicts the oldest sessions (by last activity) until the new
// session fits under the cap. Computed from a snapshot; a benign race between
// near-simultaneous logins costs at most one extra eviction.
func (s *Service) enforceLimits(ctx context.Context, userID string) (int, error) {
	existing, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(existing) < s.config.MaxConcurrentSessions {
		return 0, nil
	}

	sort.Slice(existing, func(i, j int) bool {
		return existing[i].LastActivity.Before(existing[j].LastActivity)
	})

	evict := len(existing) - s.config.MaxConcurrentSessions + 1
	for _, victim := range existing[:evict] {
		if _, err := s.Destroy(ctx, victim.SessionID); err != nil {
			return 0, err
		}
	}
	return evict, nil
}

// Get loads a session by id. Missing, expired, and corrupt records all
// return (nil, nil); expired and corrupt records are deleted on sight. A
// store outage degrades to the same nil result, with the error wrapping
// [ErrUnavailable] so the caller can log the degradation.
func (s *Service) Get(ctx context.Context, sessionID string) (*Data, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		// Corrupt record: destroy it rather than surface a decode error.
		_, _ = s.Destroy(ctx, sessionID)
		return nil, nil
	}

	if !data.Valid(s.now()) {
		_, _ = s.Destroy(ctx, sessionID)
		return nil, nil
	}

	return &data, nil
}

// Validate loads the session and compares the stored fingerprint against the
// current request. Anomalies are recorded into SecurityFlags and returned as
// warnings; the session stays valid either way. On success the sliding expiry
// is refreshed.
//
// Validation fails open: when the store is unreachable the session reads as
// gone rather than erroring the request, and the returned error wraps
// [ErrUnavailable] for the caller to log.
func (s *Service) Validate(ctx context.Context, sessionID, userAgent, ip string) (*Data, []string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, []string{WarningSessionGone}, err
	}
	if data == nil {
		return nil, []string{WarningSessionGone}, nil
	}

	var warnings []string
	current := NewFingerprint(userAgent, ip)
	stored := data.Fingerprint

	if current.Browser != stored.Browser {
		warnings = s.flag(data, warnings, FlagBrowserChange, "device change: browser family changed")
	}
	if current.OS != stored.OS {
		warnings = s.flag(data, warnings, FlagOSChange, "device change: operating system changed")
	}
	if !current.SameDeviceClass(stored) {
		warnings = s.flag(data, warnings, FlagDeviceChange, "device change: device type changed")
	}
	if ip != stored.IP && !sameNetwork(ip, stored.IP) {
		warnings = s.flag(data, warnings, FlagIPAnomaly,
			fmt.Sprintf("ip anomaly: %s differs from %s", ip, stored.IP))
	}

	now := s.now()
	data.LastActivity = now
	data.ExpiresAt = now.Add(s.config.SessionTimeout)

	// The session already validated; an outage during the expiry refresh
	// degrades to returning it un-refreshed.
	if err := s.persist(ctx, data); err != nil {
		return data, warnings, err
	}
	if err := s.redis.Expire(ctx, s.userIndexKey(data.UserID), s.config.SessionTimeout).Err(); err != nil {
		return data, warnings, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return data, warnings, nil
}

func (s *Service) flag(data *Data, warnings []string, key, message string) []string {
	if data.SecurityFlags == nil {
		data.SecurityFlags = map[string]string{}
	}
	data.SecurityFlags[key] = message
	return append(warnings, message)
}

func (s *Service) persist(ctx context.Context, data *Data) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.redis.Set(ctx, s.sessionKey(data.SessionID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Destroy removes a session and its index entry. Idempotent: destroying an
// already-gone session reports existed=false with no error.
func (s *Service) Destroy(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var userID string
	if err == nil {
		var data Data
		if jsonErr := json.Unmarshal(raw, &data); jsonErr == nil {
			userID = data.UserID
		}
	}

	deleted, err := s.redis.Del(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if userID != "" {
		if err := s.redis.SRem(ctx, s.userIndexKey(userID), sessionID).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return deleted > 0, nil
}

// DestroyAll evicts every session of one user ("log out everywhere") and
// returns the number destroyed.
func (s *Service) DestroyAll(ctx context.Context, userID string) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	destroyed := 0
	for _, id := range ids {
		existed, err := s.Destroy(ctx, id)
		if err != nil {
			return destroyed, err
		}
		if existed {
			destroyed++
		}
	}

	if err := s.redis.Del(ctx, s.userIndexKey(userID)).Err(); err != nil {
		return destroyed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return destroyed, nil
}

// List returns the user's currently valid sessions, silently skipping index
// entries whose backing record has expired (and pruning them from the index).
func (s *Service) List(ctx context.Context, userID string) ([]*Data, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids, err := s.redis.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sessions := make([]*Data, 0, len(ids))
	for _, id := range ids {
		data, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if data == nil {
			_ = s.redis.SRem(ctx, s.userIndexKey(userID), id).Err()
			continue
		}
		sessions = append(sessions, data)
	}
	return sessions, nil
}

// sameNetwork tolerates minor IP churn: IPv4 addresses sharing a /24 or /16
// prefix (NAT and mobile-carrier reassignment), IPv6 addresses sharing a /64.
func sameNetwork(a, b string) bool {
	ipA := net.ParseIP(a)
	ipB := net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return false
	}

	if v4A, v4B := ipA.To4(), ipB.To4(); v4A != nil && v4B != nil {
		if v4A[0] == v4B[0] && v4A[1] == v4B[1] && v4A[2] == v4B[2] {
			return true
		}
		return v4A[0] == v4B[0] && v4A[1] == v4B[1]
	}

	a16, b16 := ipA.To16(), ipB.To16()
	if a16 == nil || b16 == nil {
		return false
	}
	for i := 0; i < 8; i++ {
		if a16[i] != b16[i] {
			return false
		}
	}
	return true
}
