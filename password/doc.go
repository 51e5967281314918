// Package password provides bcrypt password hashing with bounded concurrency
// and the registration-time strength policy.
//
// Hashing is deliberately slow (cost 12 by default). A semaphore caps the
// number of bcrypt computations in flight so a burst of logins cannot pin
// every CPU. The package also maintains a fixed dummy hash, computed at the
// configured cost, for verifying against when an account does not exist —
// keeping the not-found path as slow as the real one.
package password
