// Package bruteforce rate-limits authentication attempts per identifier
// (email or client IP) and escalates to a time-boxed lockout.
//
// # Window semantics
//
// Attempt counters are INCR + EXPIRE-on-first-hit: the window starts at the
// first failure and the counter vanishes when it lapses. Once the counter
// reaches the threshold a separate lockout key is written with its own TTL;
// the lockout key is authoritative and outlives the counter. A successful
// login deletes the counters and lockout outright — history clears, it does
// not decay.
//
// Identifiers are stored as SHA-256 hashes, never raw.
//
// # Failure policy
//
// Every check degrades to "not locked out" when Redis is unreachable. The
// degradation is reported through the returned error so callers can log it;
// blocking all authentication on a cache outage is the worse failure mode.
package bruteforce
