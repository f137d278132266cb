package innercircle

import (
	"fmt"
	"time"
)

// Tier is an access level. Tiers form a total order: a credential at one
// tier grants access to that tier and every tier below it.
type Tier uint8

const (
	// TierPublic is freely accessible content.
	TierPublic Tier = iota
	// TierInnerCircle is members-only content.
	TierInnerCircle
	// TierPrivate is the most restricted tier.
	TierPrivate
)

func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierInnerCircle:
		return "inner-circle"
	case TierPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// ParseTier maps a tier name to its value. Unknown names are ErrInvalidTier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "public":
		return TierPublic, nil
	case "inner-circle":
		return TierInnerCircle, nil
	case "private":
		return TierPrivate, nil
	default:
		return TierPublic, fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
}

// AtLeast reports whether the tier satisfies the required one.
func (t Tier) AtLeast(required Tier) bool {
	return t >= required
}

// CredentialKind discriminates how access was presented.
type CredentialKind uint8

const (
	// KindNone means no credential was presented.
	KindNone CredentialKind = iota
	// KindSession is a session identifier from the access cookie.
	KindSession
	// KindMemberKey is a raw member key, typically a bearer header.
	KindMemberKey
)

func (k CredentialKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSession:
		return "session"
	case KindMemberKey:
		return "member_key"
	default:
		return "unknown"
	}
}

// ResolvedCredential is a credential after lookup: its kind, the tier it
// grants, and the identifiers needed for auditing and revocation.
type ResolvedCredential struct {
	Kind      CredentialKind
	Tier      Tier
	Subject   string
	SessionID string
	KeyID     string
	MemberID  string
	ExpiresAt time.Time
}

// DenyReason discriminates why an authorization decision denied access.
type DenyReason uint8

const (
	// DenyNone accompanies an allowed decision.
	DenyNone DenyReason = iota
	// DenyNoCredential means nothing usable was presented.
	DenyNoCredential
	// DenyInsufficientTier means the credential is live but its tier is
	// below the requirement.
	DenyInsufficientTier
	// DenyExpired means the credential's lifetime has passed.
	DenyExpired
	// DenyRevoked means the credential was administratively revoked.
	DenyRevoked
	// DenyRateLimited means the caller exceeded the request budget.
	DenyRateLimited
	// DenyBlocked means the security monitor has blocked the caller.
	DenyBlocked
)

func (r DenyReason) String() string {
	switch r {
	case DenyNone:
		return "none"
	case DenyNoCredential:
		return "no_credential"
	case DenyInsufficientTier:
		return "insufficient_tier"
	case DenyExpired:
		return "expired"
	case DenyRevoked:
		return "revoked"
	case DenyRateLimited:
		return "rate_limited"
	case DenyBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check. Never a bare boolean:
// callers map distinct reasons to distinct HTTP statuses and audit records.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// Tier is the tier of the presented credential, meaningful whenever a
	// credential was resolved at all.
	Tier Tier
}

// Allow is the decision granting access at the credential's tier.
func Allow(t Tier) Decision {
	return Decision{Allowed: true, Tier: t}
}

// Deny is a decision refusing access for the given reason.
func Deny(reason DenyReason, t Tier) Decision {
	return Decision{Reason: reason, Tier: t}
}
