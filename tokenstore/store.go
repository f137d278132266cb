package tokenstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups when no live record exists. Lazy
	// invalidation means expired and revoked sessions also surface as
	// ErrNotFound even while the bytes still sit in storage.
	ErrNotFound = errors.New("tokenstore: record not found")
	// ErrStoreUnavailable wraps backend transport failures. Callers must
	// fail closed on it.
	ErrStoreUnavailable = errors.New("tokenstore: backend unavailable")
	// ErrCorruptRecord is returned when stored bytes do not decode.
	ErrCorruptRecord = errors.New("tokenstore: corrupt record")
)

// ConsumeStatus is the discriminated outcome of a consume attempt. Exactly
// one attempt per token ever observes [Consumed].
type ConsumeStatus uint8

const (
	// Consumed means this call won the transition and the token is spent.
	Consumed ConsumeStatus = iota
	// NotFound means no record exists for the token.
	NotFound
	// Expired means the record exists but its lifetime has passed.
	Expired
	// Revoked means the token was administratively revoked before use.
	Revoked
	// AlreadyConsumed means a previous call won the transition.
	AlreadyConsumed
)

func (s ConsumeStatus) String() string {
	switch s {
	case Consumed:
		return "consumed"
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case Revoked:
		return "revoked"
	case AlreadyConsumed:
		return "already_consumed"
	default:
		return "unknown"
	}
}

// OneTimeToken is the stored state of a single-use unlock token. The token
// itself never appears here; records are keyed by its SHA-256 hex digest.
type OneTimeToken struct {
	TokenHash  string
	Tier       uint8
	Subject    string
	IssuedAt   int64
	ExpiresAt  int64
	ConsumedAt int64 // unix seconds, 0 while unconsumed
	Revoked    bool
}

// Live reports whether the token is still redeemable at now. Every read
// path uses this one predicate so expiry semantics cannot drift between
// backends.
func (t *OneTimeToken) Live(now time.Time) bool {
	return t != nil && !t.Revoked && t.ConsumedAt == 0 && now.Unix() < t.ExpiresAt
}

// Session is a long-lived access grant bound to a tier. The SessionID is
// the bearer credential and the storage key.
type Session struct {
	SessionID string
	Tier      uint8
	Subject   string
	IssuedAt  int64
	ExpiresAt int64
	Revoked   bool
}

// Live reports whether the session should be returned by lookups at now.
func (s *Session) Live(now time.Time) bool {
	return s != nil && !s.Revoked && now.Unix() < s.ExpiresAt
}

// Store is the pluggable backend for one-time tokens and sessions.
//
// All methods are I/O suspension points: implementations may block on the
// backend and must respect ctx cancellation. Transport failures are wrapped
// in [ErrStoreUnavailable].
type Store interface {
	// PutOneTimeToken persists a freshly issued token record. The backend
	// bounds storage with a TTL derived from ExpiresAt.
	PutOneTimeToken(ctx context.Context, tok *OneTimeToken) error

	// GetOneTimeToken returns the record for the hashed token, or
	// ErrNotFound once it is missing or past expiry.
	GetOneTimeToken(ctx context.Context, tokenHash string) (*OneTimeToken, error)

	// ConsumeOneTimeToken atomically transitions an unconsumed, unrevoked,
	// unexpired token to consumed. The status discriminates every failure
	// precondition; backend faults are reported through err. On Consumed
	// the stamped record comes back with the status, so the winner never
	// has to re-read a record whose TTL may fire right after the
	// transition; on any other status the record is nil.
	ConsumeOneTimeToken(ctx context.Context, tokenHash string, now time.Time) (*OneTimeToken, ConsumeStatus, error)

	// RevokeOneTimeToken marks a token revoked. Revoking a missing or
	// already revoked token is a no-op.
	RevokeOneTimeToken(ctx context.Context, tokenHash string) error

	// GetSession returns the live session or ErrNotFound. Revoked and
	// expired sessions are invalidated lazily: the record may physically
	// remain, but lookups never return it.
	GetSession(ctx context.Context, sessionID string, now time.Time) (*Session, error)

	// UpsertSession idempotently writes a session with a TTL aligned to
	// its ExpiresAt so storage does not grow unbounded.
	UpsertSession(ctx context.Context, sess *Session) error

	// RevokeSession marks a session revoked. Missing session is a no-op.
	RevokeSession(ctx context.Context, sessionID string) error
}
