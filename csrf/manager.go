package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minSecretLen = 32

// Manager issues and validates user-bound CSRF tokens. Safe for concurrent
// use; it holds no mutable state.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewManager creates a token manager. The secret must be at least 32 bytes of
// server-held entropy.
func NewManager(secret []byte, lifetime time.Duration) (*Manager, error) {
	if len(secret) < minSecretLen {
		return nil, errors.New("csrf secret must be at least 32 bytes")
	}
	if lifetime <= 0 {
		return nil, errors.New("csrf token lifetime must be > 0")
	}
	return &Manager{
		secret:   append([]byte(nil), secret...),
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Generate returns a fresh token for the user.
func (m *Manager) Generate(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id required")
	}
	return m.generateAt(userID, m.now()), nil
}

func (m *Manager) generateAt(userID string, ts time.Time) string {
	payload := fmt.Sprintf("%s:%d", userID, ts.Unix())
	token := payload + ":" + m.sign(payload)
	return base64.URLEncoding.EncodeToString([]byte(token))
}

// Validate reports whether the token was issued by this manager for userID and
// is still within its lifetime. It returns false on any decoding or parsing
// failure and never panics.
func (m *Manager) Validate(token, userID string) bool {
	if token == "" || userID == "" {
		return false
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return false
	}

	// The signature is hex and the timestamp is digits, so neither contains
	// a colon; splitting from the right leaves the user id intact even when
	// it carries colons of its own.
	decoded := string(raw)
	sigIdx := strings.LastIndex(decoded, ":")
	if sigIdx < 0 {
		return false
	}
	payload, sig := decoded[:sigIdx], decoded[sigIdx+1:]
	tsIdx := strings.LastIndex(payload, ":")
	if tsIdx < 0 {
		return false
	}
	tokenUser, tsRaw := payload[:tsIdx], payload[tsIdx+1:]

	if tokenUser == "" || sig == "" || tokenUser != userID {
		return false
	}

	issued, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return false
	}
	age := m.now().Sub(time.Unix(issued, 0))
	if age > m.lifetime || age < -clockSkew {
		return false
	}

	expected := m.sign(tokenUser + ":" + tsRaw)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// clockSkew tolerates small clock drift between issuing and validating hosts.
const clockSkew = 30 * time.Second

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
