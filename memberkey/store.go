package memberkey

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means no key matches the lookup.
	ErrNotFound = errors.New("memberkey: key not found")
	// ErrQuotaExceeded means the member already holds the maximum number
	// of active keys. Nothing is persisted from the failed issuance.
	ErrQuotaExceeded = errors.New("memberkey: active key quota exceeded")
	// ErrStoreUnavailable wraps backend transport failures.
	ErrStoreUnavailable = errors.New("memberkey: backend unavailable")
	// ErrInvalidInput rejects structurally unusable arguments.
	ErrInvalidInput = errors.New("memberkey: invalid input")
	// ErrInvalidTransition rejects a status change the lifecycle does not
	// permit (e.g. reinstating a revoked key).
	ErrInvalidTransition = errors.New("memberkey: invalid status transition")
)

// MemberUpsert carries the member-side fields of an issuance. MemberID is
// the candidate identifier used only when the email hash is new.
type MemberUpsert struct {
	MemberID        string
	EmailHash       string
	EmailHashPrefix string
	Name            string
	IP              string
	Metadata        map[string]string
	Now             time.Time
}

// IssueRecord is the transactional unit handed to Store.IssueKey.
type IssueRecord struct {
	Member        MemberUpsert
	Key           Key
	MaxActiveKeys int
}

// Store persists members and keys. Implementations must make IssueKey
// all-or-nothing: the quota check, member upsert, and key insert commit or
// roll back together.
type Store interface {
	// IssueKey runs the issuance transaction and returns the (existing or
	// new) member ID. Returns ErrQuotaExceeded without persisting anything
	// when the member already holds MaxActiveKeys active keys.
	IssueKey(ctx context.Context, in IssueRecord) (string, error)

	// GetKeyByHash returns the key record for a hashed secret.
	GetKeyByHash(ctx context.Context, keyHash string) (*Key, error)

	// RecordUnlock increments TotalUnlocks and stamps LastUsedAt on the
	// key and LastSeenAt/LastIP on its member. Missing key is ErrNotFound.
	RecordUnlock(ctx context.Context, keyHash, ip string, at time.Time) error

	// SetKeyStatus moves the key to the target status if its current
	// status is in from. Returns the status observed before the call and
	// whether a transition happened.
	SetKeyStatus(ctx context.Context, keyID string, from []Status, to Status) (Status, bool, error)

	// ExpireKeys transitions every active key past its expiry to expired
	// and returns how many rows changed. Idempotent.
	ExpireKeys(ctx context.Context, now time.Time) (int, error)

	// GetMemberByEmailHash returns the member record, or ErrNotFound.
	GetMemberByEmailHash(ctx context.Context, emailHash string) (*Member, error)

	// CountActiveKeys returns the member's current active key count.
	CountActiveKeys(ctx context.Context, memberID string) (int, error)
}
