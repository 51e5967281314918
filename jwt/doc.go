// Package jwt wraps github.com/golang-jwt/jwt/v5 with the claim schema and
// error taxonomy used by the securecore engine. Access and refresh tokens
// share one schema distinguished by the "typ" claim; callers that need a
// refresh token must ask for one explicitly.
package jwt
