package password

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher defines a public type used by securecore APIs.
//
// Hasher instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Hasher struct {
	cost      int
	sem       chan struct{}
	dummyHash string
}

// dummyPassword only exists so the dummy hash has realistic input length.
// It is never a valid credential: verification against the dummy hash always
// uses the attacker-supplied password, which cannot match a random salt's
// digest of this constant except by bcrypt collision.
const dummyPassword = "mestore-placeholder-credential"

// NewHasher creates a bcrypt hasher. maxConcurrent bounds in-flight hash and
// verify computations. The dummy hash is computed here, at the same cost as
// real hashes, so the two can never drift apart when the cost changes.
func NewHasher(cost, maxConcurrent int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	if maxConcurrent <= 0 {
		return nil, errors.New("maxConcurrent must be > 0")
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		cost:      cost,
		sem:       make(chan struct{}, maxConcurrent),
		dummyHash: string(dummy),
	}, nil
}

// Hash computes the bcrypt hash of password. It blocks while the concurrency
// budget is exhausted, honoring context cancellation.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether plain matches hashed. The comparison inside bcrypt
// is constant-time over the digest.
func (h *Hasher) Verify(ctx context.Context, plain, hashed string) bool {
	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()

	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// VerifyDummy burns a full bcrypt verification against the placeholder hash.
// Called on the account-not-found path so its duration matches a real
// verification.
func (h *Hasher) VerifyDummy(ctx context.Context, plain string) {
	h.Verify(ctx, plain, h.dummyHash)
}

// Cost returns the configured bcrypt cost.
func (h *Hasher) Cost() int {
	return h.cost
}

func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hasher) release() {
	<-h.sem
}
