package securecore

import (
	"context"
	"time"
)

// User is the account shape the engine needs for authentication. The
// marketplace's full user model lives in the calling layer; only these fields
// cross the boundary.
type User struct {
	ID           string
	Email        string
	UserType     string
	PasswordHash string
	IsActive     bool
}

// UserProvider supplies account lookups to the engine. Implementations should
// return [ErrUserNotFound] (possibly wrapped) when no account matches; any
// other error is treated as an infrastructure failure and the authentication
// attempt is rejected.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// TokenPair is returned by [Service.GenerateTokens].
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Principal is the canonical authenticated identity derived from a validated
// access token. It is constructed in exactly one place
// ([Service.ValidateToken]) so that every caller sees the same field set
// instead of assembling ad-hoc claim maps.
type Principal struct {
	UserID    string
	Email     string
	UserType  string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
