package securecore

import "errors"

var (
	// ErrEngineNotReady is returned when a Service method is called on a nil
	// or partially constructed engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials is the uniform authentication failure. Wrong
	// password, unknown email, inactive account, and active lockout all
	// collapse into this error so that callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by UserProvider implementations when no
	// account matches the identifier. It never escapes AuthenticateUser.
	ErrUserNotFound = errors.New("user not found")
	// ErrWeakPassword is the base error for password policy violations.
	// The concrete failure carries a descriptive message and unwraps to this.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrTokenRevoked is returned for blacklisted tokens. It is distinct from
	// ErrTokenInvalid so clients can tell "please log in again" from a bug.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenExpired is returned for tokens past their expiry claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed tokens and signature failures.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrCSRFMissing is returned when no CSRF token accompanied a
	// state-changing request.
	ErrCSRFMissing = errors.New("csrf token missing")
	// ErrCSRFInvalid is returned when a CSRF token fails validation.
	ErrCSRFInvalid = errors.New("csrf token invalid")
	// ErrBotRejected is returned when session creation is refused because the
	// device fingerprint classifies the client as an automated agent.
	ErrBotRejected = errors.New("automated client rejected")
	// ErrSessionNotFound is returned by GetSession when a session id
	// resolves to nothing, an expired record, or a corrupt blob. A store
	// outage degrades to it as well: an unreachable backend reads as "no
	// session".
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrStoreUnavailable wraps Redis transport failures. Rate-limit and
	// session paths degrade open on it; token validation fails closed.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
