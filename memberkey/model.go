package memberkey

import "time"

// Status is the lifecycle state of a member key.
//
// Transitions are one-directional except the administrative
// active↔suspended pair. active→revoked and active→expired are terminal.
type Status uint8

const (
	// StatusPending is a key issued but not yet activated.
	StatusPending Status = iota
	// StatusActive is a usable key.
	StatusActive
	// StatusRevoked is terminal; set by explicit administrative action.
	StatusRevoked
	// StatusExpired is terminal; set by the expiry sweep.
	StatusExpired
	// StatusSuspended is a temporary administrative hold.
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	case StatusExpired:
		return "expired"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Member owns zero or more keys. EmailHash is the idempotent upsert key;
// EmailHashPrefix exists for indexed prefix lookups in support tooling.
type Member struct {
	ID              string
	EmailHash       string
	EmailHashPrefix string
	Name            string
	LastIP          string
	Metadata        map[string]string
	CreatedAt       time.Time
	LastSeenAt      time.Time
}

// Key is the stored state of one member key. KeyHash is the lookup key;
// the raw secret exists only in the [IssuedKey] handed back at issuance.
type Key struct {
	ID           string
	MemberID     string
	KeyHash      string
	KeySuffix    string
	Status       Status
	CreatedAt    time.Time
	ExpiresAt    time.Time
	TotalUnlocks int64 // monotonically increasing
	LastUsedAt   time.Time
}

// IssuedKey is returned to the caller exactly once. RawKey is never
// persisted anywhere in this module.
type IssuedKey struct {
	RawKey    string
	KeyID     string
	KeySuffix string
	MemberID  string
	ExpiresAt time.Time
}

// VerifyReason discriminates why a key failed verification.
type VerifyReason uint8

const (
	// ReasonNone accompanies a valid result.
	ReasonNone VerifyReason = iota
	// ReasonEmpty means no key was presented.
	ReasonEmpty
	// ReasonNotFound covers unknown, malformed, and not-yet-activated
	// keys alike, so responses do not aid credential enumeration.
	ReasonNotFound
	// ReasonRevoked is an administratively killed key.
	ReasonRevoked
	// ReasonExpired is a key past its lifetime, whether or not the sweep
	// has stamped it yet.
	ReasonExpired
	// ReasonSuspended is an administrative hold.
	ReasonSuspended
	// ReasonRateLimited means the caller exceeded the verification budget;
	// the key itself was not inspected.
	ReasonRateLimited
)

func (r VerifyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonEmpty:
		return "empty"
	case ReasonNotFound:
		return "not_found"
	case ReasonRevoked:
		return "revoked"
	case ReasonExpired:
		return "expired"
	case ReasonSuspended:
		return "suspended"
	case ReasonRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Verification is the discriminated result of a key check. Never a bare
// boolean: callers render distinct user-facing states per reason and audit
// logs capture the specific cause.
type Verification struct {
	Valid     bool
	Reason    VerifyReason
	MemberID  string
	KeyID     string
	Status    Status
	ExpiresAt time.Time
}

// CleanupResult reports what an expiry sweep changed.
type CleanupResult struct {
	Expired int
}
