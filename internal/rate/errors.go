package rate

import "errors"

// ErrRedisUnavailable wraps transport failures from the shared-store
// limiter. Callers fail closed: an unreachable limiter denies the request.
var ErrRedisUnavailable = errors.New("rate: redis unavailable")
