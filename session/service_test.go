package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestService(t *testing.T, cfg Config) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewService(rdb, cfg), mr
}

func defaultTestConfig() Config {
	return Config{
		SessionTimeout:        time.Minute,
		MaxConcurrentSessions: 3,
		RejectBots:            true,
	}
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "u-1", "alice@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("empty session id")
	}
	if !created.ExpiresAt.After(created.CreatedAt) {
		t.Fatal("expires_at not after created_at")
	}

	loaded, err := svc.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatal("session not found")
	}
	if loaded.UserID != "u-1" || loaded.Email != "alice@test.com" {
		t.Fatalf("unexpected session: %+v", loaded)
	}
	if loaded.Fingerprint.Browser != "Chrome" {
		t.Fatalf("fingerprint not persisted: %+v", loaded.Fingerprint)
	}
}

func TestBotRejected(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())

	_, _, err := svc.Create(context.Background(), "u-1", "a@test.com", "buyer", uaGooglebot, "192.0.2.1", SourceWeb)
	if !errors.Is(err, ErrBotRejected) {
		t.Fatalf("err = %v, want ErrBotRejected", err)
	}
}

func TestUnknownLoginSourceRejected(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())

	_, _, err := svc.Create(context.Background(), "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", "carrier-pigeon")
	if err == nil {
		t.Fatal("expected error for unknown login source")
	}
}

func TestSlidingExpiry(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.SessionTimeout = 60 * time.Second
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	created, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := created.ExpiresAt; !got.Equal(base.Add(60 * time.Second)) {
		t.Fatalf("expires_at = %v, want %v", got, base.Add(60*time.Second))
	}

	// Activity at +30s pushes expiry to +90s.
	svc.now = func() time.Time { return base.Add(30 * time.Second) }
	validated, warnings, err := svc.Validate(ctx, created.SessionID, uaChromeWindows, "192.0.2.1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got := validated.ExpiresAt; !got.Equal(base.Add(90 * time.Second)) {
		t.Fatalf("expires_at = %v, want %v", got, base.Add(90*time.Second))
	}

	// Still alive at +80s thanks to the refresh.
	svc.now = func() time.Time { return base.Add(80 * time.Second) }
	if data, _ := svc.Get(ctx, created.SessionID); data == nil {
		t.Fatal("session expired despite activity")
	}

	// Idle past the refreshed deadline: gone.
	svc.now = func() time.Time { return base.Add(91 * time.Second) }
	if data, _ := svc.Get(ctx, created.SessionID); data != nil {
		t.Fatal("idle session still valid past its deadline")
	}
}

func TestConcurrencyCapEvictsOldest(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	base := time.Now()
	var ids []string
	for i := 0; i < 4; i++ {
		// Distinct LastActivity per session so eviction order is fixed.
		offset := time.Duration(i) * time.Second
		svc.now = func() time.Time { return base.Add(offset) }

		data, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, data.SessionID)
	}

	svc.now = func() time.Time { return base.Add(10 * time.Second) }
	remaining, err := svc.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("remaining sessions = %d, want 3", len(remaining))
	}

	if data, _ := svc.Get(ctx, ids[0]); data != nil {
		t.Fatal("oldest session survived eviction")
	}
	for _, id := range ids[1:] {
		if data, _ := svc.Get(ctx, id); data == nil {
			t.Fatalf("session %s evicted unexpectedly", id)
		}
	}
}

func TestValidateWarnings(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.168.1.10", SourceWeb)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		name      string
		ua        string
		ip        string
		wantFlags []string
	}{
		{"same device same ip", uaChromeWindows, "192.168.1.10", nil},
		{"same /24", uaChromeWindows, "192.168.1.200", nil},
		{"same /16", uaChromeWindows, "192.168.77.5", nil},
		{"different network", uaChromeWindows, "10.0.0.1", []string{FlagIPAnomaly}},
		{"browser change", uaFirefoxLinux, "192.168.1.10", []string{FlagBrowserChange, FlagOSChange}},
		{"device class change", uaIPhone, "192.168.1.10", []string{FlagBrowserChange, FlagOSChange, FlagDeviceChange}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, warnings, err := svc.Validate(ctx, created.SessionID, tc.ua, tc.ip)
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if data == nil {
				t.Fatal("session invalidated by anomaly check")
			}
			if len(warnings) != len(tc.wantFlags) {
				t.Fatalf("warnings = %v, want %d flags", warnings, len(tc.wantFlags))
			}
			for _, flag := range tc.wantFlags {
				if _, ok := data.SecurityFlags[flag]; !ok {
					t.Fatalf("flag %q not recorded: %v", flag, data.SecurityFlags)
				}
			}
		})
	}
}

func TestValidateGoneSession(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())

	data, warnings, err := svc.Validate(context.Background(), "no-such-session", uaChromeWindows, "192.0.2.1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if data != nil {
		t.Fatal("nonexistent session validated")
	}
	if len(warnings) != 1 || warnings[0] != WarningSessionGone {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestValidateFailsOpenOnBackendOutage(t *testing.T) {
	svc, mr := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.Close()

	// The live session reads as gone; the error reports the outage without
	// changing that result.
	data, warnings, err := svc.Validate(ctx, created.SessionID, uaChromeWindows, "192.0.2.1")
	if data != nil {
		t.Fatal("session validated against an unreachable backend")
	}
	if len(warnings) != 1 || warnings[0] != WarningSessionGone {
		t.Fatalf("warnings = %v", warnings)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}

	got, err := svc.Get(ctx, created.SessionID)
	if got != nil {
		t.Fatal("get returned a session against an unreachable backend")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("get error = %v, want ErrUnavailable", err)
	}
}

func TestOperationTimeoutBoundsStoreCalls(t *testing.T) {
	svc, _ := newTestService(t, Config{
		SessionTimeout:        time.Minute,
		MaxConcurrentSessions: 3,
		OperationTimeout:      time.Millisecond,
	})

	// An already-expired parent deadline surfaces immediately instead of
	// hanging on the store.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Get(ctx, "any"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	existed, err := svc.Destroy(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if !existed {
		t.Fatal("first destroy reported not-found")
	}

	existed, err = svc.Destroy(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	if existed {
		t.Fatal("second destroy reported found")
	}
}

func TestDestroyAll(t *testing.T) {
	svc, _ := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, _, err := svc.Create(ctx, "u-2", "b@test.com", "vendor", uaChromeWindows, "192.0.2.1", SourceWeb); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := svc.DestroyAll(ctx, "u-1")
	if err != nil {
		t.Fatalf("destroy all: %v", err)
	}
	if n != 3 {
		t.Fatalf("destroyed = %d, want 3", n)
	}

	remaining, _ := svc.List(ctx, "u-1")
	if len(remaining) != 0 {
		t.Fatalf("u-1 sessions left: %d", len(remaining))
	}
	others, _ := svc.List(ctx, "u-2")
	if len(others) != 1 {
		t.Fatal("other user's session destroyed")
	}
}

func TestCorruptRecordTreatedAsMissing(t *testing.T) {
	svc, mr := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	mr.Set("session:corrupt-id", "{not json")

	data, err := svc.Get(ctx, "corrupt-id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if data != nil {
		t.Fatal("corrupt record returned as session")
	}
	if mr.Exists("session:corrupt-id") {
		t.Fatal("corrupt record not destroyed")
	}
}

func TestListSkipsDeadIndexEntries(t *testing.T) {
	svc, mr := newTestService(t, defaultTestConfig())
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "u-1", "a@test.com", "buyer", uaChromeWindows, "192.0.2.1", SourceWeb)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Simulate Redis expiring the record while the index entry lingers.
	mr.Del("session:" + created.SessionID)

	sessions, err := svc.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("dead entry listed: %d", len(sessions))
	}
}
