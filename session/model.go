package session

import "time"

// Login sources accepted by [Service.Create].
const (
	SourceWeb    = "web"
	SourceMobile = "mobile"
	SourceAPI    = "api"
)

// Security flag keys under which anomaly warnings are recorded.
const (
	FlagBrowserChange = "browser_change"
	FlagOSChange      = "os_change"
	FlagDeviceChange  = "device_change"
	FlagIPAnomaly     = "ip_anomaly"
)

// Data defines a public type used by securecore APIs.
//
// Data is one authenticated session for one user on one device. The embedded
// Fingerprint is owned exclusively by its session and has no independent
// lifecycle.
type Data struct {
	SessionID     string            `json:"session_id"`
	UserID        string            `json:"user_id"`
	Email         string            `json:"email"`
	UserType      string            `json:"user_type"`
	Fingerprint   Fingerprint       `json:"fingerprint"`
	CreatedAt     time.Time         `json:"created_at"`
	LastActivity  time.Time         `json:"last_activity"`
	ExpiresAt     time.Time         `json:"expires_at"`
	IsActive      bool              `json:"is_active"`
	LoginSource   string            `json:"login_source"`
	SecurityFlags map[string]string `json:"security_flags,omitempty"`
}

// Valid reports whether the session is usable at the given instant.
func (d *Data) Valid(now time.Time) bool {
	return d != nil && d.IsActive && now.Before(d.ExpiresAt)
}
