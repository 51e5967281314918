// Package session manages device-fingerprinted authenticated sessions in
// Redis with sliding expiry, a per-user concurrency cap, and heuristic
// anomaly detection.
//
// Each session lives at "session:{id}" with a TTL equal to its remaining
// lifetime, and is indexed in the per-user set "user_sessions:{userID}".
// Expiry is enforced lazily as well: a loaded record past its ExpiresAt is
// treated as missing and deleted opportunistically, so correctness does not
// depend on Redis eviction timing.
//
// Fingerprint comparison flags anomalies (browser family change, OS change,
// device class change, materially different IP) but never invalidates the
// session by itself; legitimate network churn makes false positives common,
// so the decision to force re-authentication belongs to the caller.
package session
