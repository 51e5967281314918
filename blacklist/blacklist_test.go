package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBlacklist(t *testing.T) (*Blacklist, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, time.Hour), mr
}

func TestAddThenContains(t *testing.T) {
	b, _ := newTestBlacklist(t)
	ctx := context.Background()

	const token = "eyJhbGciOiJIUzI1NiJ9.payload.sig"

	found, err := b.Contains(ctx, token)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if found {
		t.Fatal("fresh token already blacklisted")
	}

	if err := b.Add(ctx, token, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("add: %v", err)
	}

	found, err = b.Contains(ctx, token)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !found {
		t.Fatal("revoked token not found")
	}
}

func TestMalformedStringsAreRevocable(t *testing.T) {
	b, _ := newTestBlacklist(t)
	ctx := context.Background()

	// The list operates on raw strings, not parsed JWTs.
	if err := b.Add(ctx, "not-a-jwt-at-all", time.Time{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	found, _ := b.Contains(ctx, "not-a-jwt-at-all")
	if !found {
		t.Fatal("malformed token not blacklisted")
	}
}

func TestEntryExpiresWithToken(t *testing.T) {
	b, mr := newTestBlacklist(t)
	ctx := context.Background()

	if err := b.Add(ctx, "tok", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("add: %v", err)
	}

	mr.FastForward(11 * time.Minute)

	found, err := b.Contains(ctx, "tok")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if found {
		t.Fatal("entry outlived the token expiry")
	}
}

func TestPastExpiryStillWritesEntry(t *testing.T) {
	b, _ := newTestBlacklist(t)
	ctx := context.Background()

	if err := b.Add(ctx, "tok", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("add: %v", err)
	}
	found, _ := b.Contains(ctx, "tok")
	if !found {
		t.Fatal("already-expired token not recorded")
	}
}

func TestRawTokenNeverStored(t *testing.T) {
	b, mr := newTestBlacklist(t)
	ctx := context.Background()

	const token = "super-secret-token-value"
	if err := b.Add(ctx, token, time.Time{}); err != nil {
		t.Fatalf("add: %v", err)
	}

	for _, key := range mr.Keys() {
		if key == "blacklist:"+token {
			t.Fatal("raw token used as key")
		}
	}
}

func TestUnavailableBackend(t *testing.T) {
	b, mr := newTestBlacklist(t)
	ctx := context.Background()
	mr.Close()

	if _, err := b.Contains(ctx, "tok"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if err := b.Add(ctx, "tok", time.Time{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
