package password

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(bcrypt.MinCost, 4)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "StrongPass123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash format: %q", hash)
	}
	if !h.Verify(ctx, "StrongPass123!", hash) {
		t.Fatal("correct password rejected")
	}
	if h.Verify(ctx, "WrongPass123!", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)
	if h.Verify(context.Background(), "anything", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash verified")
	}
}

func TestDummyHashUsesConfiguredCost(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost+1, 1)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(h.dummyHash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.MinCost+1 {
		t.Fatalf("dummy hash cost = %d, want %d", cost, bcrypt.MinCost+1)
	}
}

func TestHasherRejectsBadConfig(t *testing.T) {
	if _, err := NewHasher(bcrypt.MaxCost+1, 1); err == nil {
		t.Fatal("expected error for cost above max")
	}
	if _, err := NewHasher(bcrypt.MinCost, 0); err == nil {
		t.Fatal("expected error for zero concurrency")
	}
}

func TestHashHonorsCancelledContext(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost, 1)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	// Exhaust the semaphore so acquisition must block.
	h.sem <- struct{}{}
	defer func() { <-h.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Hash(ctx, "StrongPass123!"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestValidatePolicy(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantPart string // empty means accepted
	}{
		{"too short", "short1!", "at least 8 characters"},
		{"missing uppercase", "alllowercase1!", "uppercase"},
		{"missing lowercase", "ALLUPPER1!", "lowercase"},
		{"missing digit", "NoDigits!", "digit"},
		{"missing special", "NoSpecial123", "special"},
		{"too common", "Password1!", "too common"},
		{"accepted", "StrongPass123!", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePolicy(tc.password)
			if tc.wantPart == "" {
				if err != nil {
					t.Fatalf("expected accept, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected rejection containing %q", tc.wantPart)
			}
			if !strings.Contains(err.Error(), tc.wantPart) {
				t.Fatalf("error %q does not mention %q", err, tc.wantPart)
			}
		})
	}
}

func TestPolicyOrderIsDeterministic(t *testing.T) {
	// "short" fails length, uppercase, digit, and special at once; length
	// must win because checks run in fixed order.
	err := ValidatePolicy("short")
	if err == nil || !strings.Contains(err.Error(), "at least 8 characters") {
		t.Fatalf("expected length failure first, got %v", err)
	}
}
