// Package rate implements request rate limiting keyed by an opaque
// identifier (IP, email hash, endpoint class).
//
// Two implementations share one interface: a process-local sliding window
// for single-instance deployments, and a Redis fixed window for
// horizontally scaled ones. Limits are advisory and defensive, not
// security-absolute; the in-memory variant loses its state on restart and
// documents that as acceptable.
package rate
