package innercircle

import (
	"context"
	"errors"

	"github.com/aolweb/innercircle/memberkey"
)

// Authorize decides whether a resolved credential may access content at
// the required tier. Public content is always allowed; above that, the
// credential must exist and its tier must meet or exceed the requirement.
// The credential's liveness was already established at resolution time, so
// this is a pure comparison with no I/O.
func (e *Engine) Authorize(cred ResolvedCredential, required Tier) Decision {
	if required == TierPublic {
		if cred.Kind == KindNone {
			return Allow(TierPublic)
		}
		return Allow(cred.Tier)
	}

	if cred.Kind == KindNone {
		e.metrics.Inc(MetricAccessDenied)
		return Deny(DenyNoCredential, TierPublic)
	}

	if !cred.Tier.AtLeast(required) {
		e.metrics.Inc(MetricAccessDenied)
		return Deny(DenyInsufficientTier, cred.Tier)
	}

	return Allow(cred.Tier)
}

// AuthorizeSession resolves a session and authorizes it in one step,
// distinguishing a presented-but-dead session from no session at all so
// callers can send "log in again" instead of "log in". Lazy invalidation
// makes revoked and expired sessions indistinguishable at lookup; both
// report DenyExpired.
func (e *Engine) AuthorizeSession(ctx context.Context, sessionID string, required Tier) (Decision, error) {
	if sessionID == "" {
		return e.Authorize(ResolvedCredential{}, required), nil
	}

	grant, err := e.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if required == TierPublic {
				return Allow(TierPublic), nil
			}
			e.metrics.Inc(MetricAccessDenied)
			return Deny(DenyExpired, TierPublic), nil
		}
		return Decision{}, err
	}

	return e.Authorize(ResolvedCredential{
		Kind:      KindSession,
		Tier:      grant.Tier,
		Subject:   grant.Subject,
		SessionID: grant.SessionID,
		ExpiresAt: grant.ExpiresAt,
	}, required), nil
}

// AuthorizeMemberKey verifies a key and authorizes it in one step. Key
// verification carries the exact failure cause, so revoked and expired
// keys deny with their own reasons.
func (e *Engine) AuthorizeMemberKey(ctx context.Context, rawKey, ip string, required Tier) (Decision, error) {
	if rawKey == "" {
		return e.Authorize(ResolvedCredential{}, required), nil
	}

	v, err := e.VerifyMemberKey(ctx, rawKey, ip)
	if err != nil {
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBlocked) {
			return Deny(DenyRateLimited, TierPublic), nil
		}
		return Decision{}, err
	}
	if v.Valid {
		return e.Authorize(ResolvedCredential{
			Kind:     KindMemberKey,
			Tier:     TierInnerCircle,
			KeyID:    v.KeyID,
			MemberID: v.MemberID,
		}, required), nil
	}

	if required == TierPublic {
		return Allow(TierPublic), nil
	}
	e.metrics.Inc(MetricAccessDenied)
	switch v.Reason {
	case memberkey.ReasonRevoked, memberkey.ReasonSuspended:
		return Deny(DenyRevoked, TierPublic), nil
	case memberkey.ReasonExpired:
		return Deny(DenyExpired, TierPublic), nil
	default:
		return Deny(DenyNoCredential, TierPublic), nil
	}
}
