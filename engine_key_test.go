package innercircle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aolweb/innercircle/memberkey"
)

func TestMemberKeyQuotaFlow(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	keys := make([]*memberkey.IssuedKey, 0, 3)
	for i := 0; i < 3; i++ {
		k, err := engine.IssueMemberKey(ctx, memberkey.IssueParams{Email: "member@example.com"})
		if err != nil {
			t.Fatalf("IssueMemberKey %d: %v", i, err)
		}
		keys = append(keys, k)
	}

	if _, err := engine.IssueMemberKey(ctx, memberkey.IssueParams{Email: "member@example.com"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("want ErrQuotaExceeded, got %v", err)
	}
	if got := engine.Metrics().Value(MetricQuotaExceeded); got != 1 {
		t.Fatalf("MetricQuotaExceeded = %d", got)
	}

	if err := engine.RevokeMemberKey(ctx, keys[0].KeyID); err != nil {
		t.Fatalf("RevokeMemberKey: %v", err)
	}
	if _, err := engine.IssueMemberKey(ctx, memberkey.IssueParams{Email: "member@example.com"}); err != nil {
		t.Fatalf("IssueMemberKey after revoke: %v", err)
	}
}

func TestVerifyMemberKey(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := engine.IssueMemberKey(ctx, memberkey.IssueParams{Email: "verify@example.com"})
	if err != nil {
		t.Fatalf("IssueMemberKey: %v", err)
	}

	v, err := engine.VerifyMemberKey(ctx, issued.RawKey, "203.0.113.20")
	if err != nil {
		t.Fatalf("VerifyMemberKey: %v", err)
	}
	if !v.Valid || v.MemberID != issued.MemberID {
		t.Fatalf("want valid for issued key, got %+v", v)
	}

	// Key-level failures are a Verification, never an error.
	v, err = engine.VerifyMemberKey(ctx, "icl_bogus", "203.0.113.20")
	if err != nil {
		t.Fatalf("VerifyMemberKey unknown: %v", err)
	}
	if v.Valid || v.Reason != memberkey.ReasonNotFound {
		t.Fatalf("unknown key: %+v", v)
	}

	if err := engine.SuspendMemberKey(ctx, issued.KeyID); err != nil {
		t.Fatalf("SuspendMemberKey: %v", err)
	}
	v, _ = engine.VerifyMemberKey(ctx, issued.RawKey, "203.0.113.20")
	if v.Reason != memberkey.ReasonSuspended {
		t.Fatalf("suspended key: %+v", v)
	}

	if err := engine.ReinstateMemberKey(ctx, issued.KeyID); err != nil {
		t.Fatalf("ReinstateMemberKey: %v", err)
	}
	v, _ = engine.VerifyMemberKey(ctx, issued.RawKey, "203.0.113.20")
	if !v.Valid {
		t.Fatalf("reinstated key: %+v", v)
	}

	clock.Advance(91 * 24 * time.Hour)
	v, _ = engine.VerifyMemberKey(ctx, issued.RawKey, "203.0.113.20")
	if v.Reason != memberkey.ReasonExpired {
		t.Fatalf("want expired after ttl, got %+v", v)
	}
}

func TestVerifyMemberKeyRateLimited(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.RateLimit.VerifyMax = 1
		cfg.RateLimit.VerifyWindow = time.Minute
	})
	ctx := context.Background()

	if _, err := engine.VerifyMemberKey(ctx, "icl_whatever", "198.51.100.30"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	v, err := engine.VerifyMemberKey(ctx, "icl_whatever", "198.51.100.30")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if v.Reason != memberkey.ReasonRateLimited {
		t.Fatalf("Reason = %s", v.Reason)
	}
}

func TestResolveMemberKey(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	issued, err := engine.IssueMemberKey(ctx, memberkey.IssueParams{Email: "resolve@example.com"})
	if err != nil {
		t.Fatalf("IssueMemberKey: %v", err)
	}

	cred, err := engine.ResolveMemberKey(ctx, issued.RawKey, "203.0.113.40")
	if err != nil {
		t.Fatalf("ResolveMemberKey: %v", err)
	}
	if cred.Kind != KindMemberKey || cred.Tier != TierInnerCircle || cred.MemberID != issued.MemberID {
		t.Fatalf("unexpected credential: %+v", cred)
	}

	cred, err = engine.ResolveMemberKey(ctx, "", "203.0.113.40")
	if err != nil || cred.Kind != KindNone {
		t.Fatalf("empty key resolution: %v %+v", err, cred)
	}

	if err := engine.RevokeMemberKey(ctx, issued.KeyID); err != nil {
		t.Fatalf("RevokeMemberKey: %v", err)
	}
	cred, err = engine.ResolveMemberKey(ctx, issued.RawKey, "203.0.113.40")
	if err != nil || cred.Kind != KindNone {
		t.Fatalf("revoked key resolution: %v %+v", err, cred)
	}
}

func TestCleanupExpiredKeys(t *testing.T) {
	engine, clock := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.IssueMemberKey(ctx, memberkey.IssueParams{Email: "sweep@example.com"}); err != nil {
		t.Fatalf("IssueMemberKey: %v", err)
	}

	clock.Advance(91 * 24 * time.Hour)
	res, err := engine.CleanupExpiredKeys(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredKeys: %v", err)
	}
	if res.Expired != 1 {
		t.Fatalf("Expired = %d, want 1", res.Expired)
	}

	res, err = engine.CleanupExpiredKeys(ctx)
	if err != nil || res.Expired != 0 {
		t.Fatalf("second sweep: %v %+v", err, res)
	}
}
