package innercircle

import (
	"context"
	"errors"
	"strconv"

	"github.com/aolweb/innercircle/memberkey"
)

// IssueMemberKey creates a member key, upserting the member by email.
// Members at the active-key quota get ErrQuotaExceeded with no state
// change.
func (e *Engine) IssueMemberKey(ctx context.Context, p memberkey.IssueParams) (*memberkey.IssuedKey, error) {
	issued, err := e.keys.Issue(ctx, p)
	if err != nil {
		if errors.Is(err, memberkey.ErrQuotaExceeded) {
			e.metrics.Inc(MetricQuotaExceeded)
			e.audit.Emit(ctx, AuditEvent{
				Timestamp: e.now(),
				EventType: "key.issue",
				IP:        p.IP,
				Success:   false,
				Error:     "quota exceeded",
			})
		}
		return nil, mapStoreErr(err)
	}

	e.metrics.Inc(MetricKeyIssued)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "key.issue",
		MemberID:  issued.MemberID,
		IP:        p.IP,
		Success:   true,
		Metadata:  map[string]string{"key_suffix": issued.KeySuffix},
	})
	return issued, nil
}

// VerifyMemberKey checks a presented key under the caller defenses: the
// monitor's blocklist, the verification rate budget, and payload
// inspection. Key-level failures arrive as a Verification with a nil
// error; the error return carries defenses and storage faults only.
func (e *Engine) VerifyMemberKey(ctx context.Context, rawKey, ip string) (memberkey.Verification, error) {
	start := e.now()

	if err := e.guardCaller(ctx, e.verifyLimiter, ip, "verify"); err != nil {
		if errors.Is(err, ErrRateLimited) {
			return memberkey.Verification{Reason: memberkey.ReasonRateLimited}, err
		}
		return memberkey.Verification{}, err
	}
	if e.inspectInput(ip, "verify", rawKey) {
		return memberkey.Verification{Reason: memberkey.ReasonNotFound}, ErrInvalidFormat
	}

	v, err := e.keys.Verify(ctx, rawKey)
	if err != nil {
		return memberkey.Verification{}, mapStoreErr(err)
	}

	if v.Valid {
		e.metrics.Inc(MetricKeyVerifyValid)
	} else {
		e.metrics.Inc(MetricKeyVerifyInvalid)
	}
	e.metrics.Observe(MetricVerifyLatency, e.now().Sub(start))
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: start,
		EventType: "key.verify",
		MemberID:  v.MemberID,
		IP:        ip,
		Success:   v.Valid,
		Metadata:  map[string]string{"reason": v.Reason.String()},
	})
	return v, nil
}

// RecordKeyUnlock bumps usage counters after a successful key unlock.
// Best-effort: failures are audited but never block access.
func (e *Engine) RecordKeyUnlock(ctx context.Context, rawKey, ip string) {
	if err := e.keys.RecordUnlock(ctx, rawKey, ip); err != nil {
		e.audit.Emit(ctx, AuditEvent{
			Timestamp: e.now(),
			EventType: "key.unlock_record",
			IP:        ip,
			Success:   false,
			Error:     err.Error(),
		})
	}
}

// RevokeMemberKey terminates a key by ID. Idempotent for already revoked
// keys.
func (e *Engine) RevokeMemberKey(ctx context.Context, keyID string) error {
	if err := e.keys.Revoke(ctx, keyID); err != nil {
		return mapStoreErr(err)
	}
	e.metrics.Inc(MetricKeyRevoked)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "key.revoke",
		Success:   true,
		Metadata:  map[string]string{"key_id": keyID},
	})
	return nil
}

// SuspendMemberKey places an administrative hold on a key.
func (e *Engine) SuspendMemberKey(ctx context.Context, keyID string) error {
	if err := e.keys.Suspend(ctx, keyID); err != nil {
		return mapStoreErr(err)
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "key.suspend",
		Success:   true,
		Metadata:  map[string]string{"key_id": keyID},
	})
	return nil
}

// ReinstateMemberKey lifts a suspension.
func (e *Engine) ReinstateMemberKey(ctx context.Context, keyID string) error {
	if err := e.keys.Reinstate(ctx, keyID); err != nil {
		return mapStoreErr(err)
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "key.reinstate",
		Success:   true,
		Metadata:  map[string]string{"key_id": keyID},
	})
	return nil
}

// CleanupExpiredKeys sweeps active keys past expiry. Verification already
// treats them as expired; the sweep keeps stored status in line.
func (e *Engine) CleanupExpiredKeys(ctx context.Context) (memberkey.CleanupResult, error) {
	res, err := e.keys.CleanupExpired(ctx)
	if err != nil {
		return memberkey.CleanupResult{}, mapStoreErr(err)
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: "key.cleanup",
		Success:   true,
		Metadata:  map[string]string{"expired": strconv.Itoa(res.Expired)},
	})
	return res, nil
}

// ResolveMemberKey turns a presented raw key into a credential for
// authorization. A valid key always grants the inner-circle tier. Invalid
// keys resolve to KindNone; only caller defenses and storage faults error.
func (e *Engine) ResolveMemberKey(ctx context.Context, rawKey, ip string) (ResolvedCredential, error) {
	if rawKey == "" {
		return ResolvedCredential{}, nil
	}
	v, err := e.VerifyMemberKey(ctx, rawKey, ip)
	if err != nil {
		return ResolvedCredential{}, err
	}
	if !v.Valid {
		return ResolvedCredential{}, nil
	}
	return ResolvedCredential{
		Kind:      KindMemberKey,
		Tier:      TierInnerCircle,
		KeyID:     v.KeyID,
		MemberID:  v.MemberID,
		ExpiresAt: v.ExpiresAt,
	}, nil
}
