// Package securecore is the authentication and session security engine behind
// the MeStore marketplace backend. It issues and validates JWT access/refresh
// tokens with Redis-backed revocation, enforces brute-force lockout on login
// attempts, manages device-fingerprinted sessions with concurrency caps and
// anomaly detection, and provides stateless HMAC CSRF tokens for state-changing
// requests.
//
// The package is designed for concurrent server workloads: Service methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// securecore is the public surface. It exposes [Service], [Builder], [Config],
// and value types ([Principal], [TokenPair], [AuditEvent]). The route layer
// that owns HTTP status codes, JSON bodies, and authorization decisions calls
// into this package with plain strings (email, password, session id, raw
// tokens, User-Agent, client IP) and never sees Redis keys or hashing details.
//
// # Failure policy
//
// Rate-limit checks and session lookups fail open when Redis is unreachable:
// availability over strict enforcement, with the degradation surfaced to the
// caller for logging rather than swallowed. Password verification and token
// validation fail closed — a store outage is never interpreted as "the user is
// authenticated."
package securecore
