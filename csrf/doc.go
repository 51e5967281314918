// Package csrf implements stateless anti-CSRF tokens bound to one user.
//
// A token is base64url("{userID}:{unixTS}:{hex(HMAC-SHA256(payload, secret))}").
// Nothing is stored server-side, so validation costs no store round-trip; the
// tradeoff is that a token cannot be revoked before its lifetime elapses,
// which is acceptable at the default one-hour lifetime.
package csrf
