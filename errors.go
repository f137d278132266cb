package innercircle

import "errors"

var (
	// ErrNotFound means no credential matches the presented value.
	ErrNotFound = errors.New("innercircle: not found")
	// ErrExpired means the credential exists but its lifetime has passed.
	ErrExpired = errors.New("innercircle: credential expired")
	// ErrRevoked means the credential was administratively revoked.
	ErrRevoked = errors.New("innercircle: credential revoked")
	// ErrAlreadyConsumed means the one-time token was spent by an earlier
	// call.
	ErrAlreadyConsumed = errors.New("innercircle: token already consumed")
	// ErrSuspended means the member key is under an administrative hold.
	ErrSuspended = errors.New("innercircle: key suspended")
	// ErrRateLimited means the caller exceeded the request budget; the
	// credential itself was not inspected.
	ErrRateLimited = errors.New("innercircle: rate limited")
	// ErrBlocked means the security monitor has blocked the caller.
	ErrBlocked = errors.New("innercircle: identifier blocked")
	// ErrQuotaExceeded means the member holds the maximum active keys.
	ErrQuotaExceeded = errors.New("innercircle: key quota exceeded")
	// ErrStorageUnavailable wraps backend transport failures. Every access
	// decision fails closed on it.
	ErrStorageUnavailable = errors.New("innercircle: storage unavailable")
	// ErrInvalidFormat rejects structurally malformed input before any
	// storage lookup.
	ErrInvalidFormat = errors.New("innercircle: invalid format")
	// ErrInvalidTier rejects an unknown tier name or value.
	ErrInvalidTier = errors.New("innercircle: invalid tier")
)
