package memberkey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aolweb/innercircle/credential"
)

func newTestService(t *testing.T) (*Service, *MemoryStore, *time.Time) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := NewService(store, Config{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, store, &clock
}

func TestIssueAndVerify(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, IssueParams{Email: "Dana@Example.com ", Name: "Dana", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.RawKey == "" || issued.KeyID == "" || issued.MemberID == "" {
		t.Fatalf("incomplete IssuedKey: %+v", issued)
	}

	v, err := svc.Verify(ctx, issued.RawKey)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.Valid || v.Reason != ReasonNone {
		t.Fatalf("want valid, got %+v", v)
	}
	if v.MemberID != issued.MemberID || v.KeyID != issued.KeyID {
		t.Fatalf("identity mismatch: %+v vs %+v", v, issued)
	}

	// Same email, different case and padding, resolves to the same member.
	second, err := svc.Issue(ctx, IssueParams{Email: "dana@example.com"})
	if err != nil {
		t.Fatalf("Issue second: %v", err)
	}
	if second.MemberID != issued.MemberID {
		t.Fatalf("member not reused: %s vs %s", second.MemberID, issued.MemberID)
	}
}

func TestIssueQuota(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	keys := make([]*IssuedKey, 0, 3)
	for i := 0; i < 3; i++ {
		k, err := svc.Issue(ctx, IssueParams{Email: "quota@example.com"})
		if err != nil {
			t.Fatalf("Issue %d: %v", i, err)
		}
		keys = append(keys, k)
	}

	if _, err := svc.Issue(ctx, IssueParams{Email: "quota@example.com"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("want ErrQuotaExceeded, got %v", err)
	}

	// The rejected issuance must not have persisted anything.
	active, err := store.CountActiveKeys(ctx, keys[0].MemberID)
	if err != nil {
		t.Fatalf("CountActiveKeys: %v", err)
	}
	if active != 3 {
		t.Fatalf("active keys = %d, want 3", active)
	}

	// Revoking one frees a slot.
	if err := svc.Revoke(ctx, keys[0].KeyID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Issue(ctx, IssueParams{Email: "quota@example.com"}); err != nil {
		t.Fatalf("Issue after revoke: %v", err)
	}
}

func TestVerifyReasons(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	issue := func(email string) *IssuedKey {
		t.Helper()
		k, err := svc.Issue(ctx, IssueParams{Email: email})
		if err != nil {
			t.Fatalf("Issue(%s): %v", email, err)
		}
		return k
	}

	revoked := issue("revoked@example.com")
	if err := svc.Revoke(ctx, revoked.KeyID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	suspended := issue("suspended@example.com")
	if err := svc.Suspend(ctx, suspended.KeyID); err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	pending := issue("pending@example.com")
	if _, _, err := store.SetKeyStatus(ctx, pending.KeyID, []Status{StatusActive}, StatusPending); err != nil {
		t.Fatalf("SetKeyStatus: %v", err)
	}

	unknown, err := credential.NewMemberKey()
	if err != nil {
		t.Fatalf("NewMemberKey: %v", err)
	}

	fresh := issue("fresh@example.com")

	cases := []struct {
		name   string
		key    string
		reason VerifyReason
	}{
		{"empty", "", ReasonEmpty},
		{"malformed", "not-a-key", ReasonNotFound},
		{"unknown", unknown, ReasonNotFound},
		{"pending reads as not found", pending.RawKey, ReasonNotFound},
		{"revoked", revoked.RawKey, ReasonRevoked},
		{"suspended", suspended.RawKey, ReasonSuspended},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := svc.Verify(ctx, tc.key)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if v.Valid || v.Reason != tc.reason {
				t.Fatalf("got %+v, want reason %s", v, tc.reason)
			}
		})
	}

	// Read-time expiry: advance past the TTL without running the sweep.
	*clock = clock.Add(91 * 24 * time.Hour)
	v, err := svc.Verify(ctx, fresh.RawKey)
	if err != nil {
		t.Fatalf("Verify expired: %v", err)
	}
	if v.Valid || v.Reason != ReasonExpired {
		t.Fatalf("want expired before sweep, got %+v", v)
	}
}

func TestRecordUnlock(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, IssueParams{Email: "unlock@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.RecordUnlock(ctx, issued.RawKey, "10.0.0.9"); err != nil {
			t.Fatalf("RecordUnlock %d: %v", i, err)
		}
	}

	key, err := store.GetKeyByHash(ctx, credential.HashHex(issued.RawKey))
	if err != nil {
		t.Fatalf("GetKeyByHash: %v", err)
	}
	if key.TotalUnlocks != 3 {
		t.Fatalf("TotalUnlocks = %d, want 3", key.TotalUnlocks)
	}

	member, err := store.GetMemberByEmailHash(ctx, credential.HashHex("unlock@example.com"))
	if err != nil {
		t.Fatalf("GetMemberByEmailHash: %v", err)
	}
	if member.LastIP != "10.0.0.9" {
		t.Fatalf("LastIP = %q", member.LastIP)
	}

	if err := svc.RecordUnlock(ctx, "garbage", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for malformed key, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, IssueParams{Email: "lifecycle@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Suspend(ctx, issued.KeyID); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := svc.Reinstate(ctx, issued.KeyID); err != nil {
		t.Fatalf("Reinstate: %v", err)
	}

	if err := svc.Revoke(ctx, issued.KeyID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Idempotent.
	if err := svc.Revoke(ctx, issued.KeyID); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	// Revocation is terminal.
	if err := svc.Reinstate(ctx, issued.KeyID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}

	// Expiry is terminal too.
	expiring, err := svc.Issue(ctx, IssueParams{Email: "lifecycle@example.com"})
	if err != nil {
		t.Fatalf("Issue expiring: %v", err)
	}
	*clock = clock.Add(91 * 24 * time.Hour)
	if _, err := svc.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if err := svc.Revoke(ctx, expiring.KeyID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition for expired key, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := svc.Issue(ctx, IssueParams{Email: email}); err != nil {
			t.Fatalf("Issue(%s): %v", email, err)
		}
	}

	res, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if res.Expired != 0 {
		t.Fatalf("premature expiry: %d", res.Expired)
	}

	*clock = clock.Add(91 * 24 * time.Hour)
	res, err = svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if res.Expired != 2 {
		t.Fatalf("Expired = %d, want 2", res.Expired)
	}

	// A second sweep finds nothing left to stamp.
	res, err = svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired again: %v", err)
	}
	if res.Expired != 0 {
		t.Fatalf("sweep not idempotent: %d", res.Expired)
	}
}
