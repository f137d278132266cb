// Package innercircle is the access-control engine for a membership-gated
// content site. It manages the full lifecycle of three credential kinds:
// single-use unlock tokens, long-lived access sessions, and member keys.
//
// The Engine is the single entry point. It is assembled once through the
// Builder, which selects the token storage backend (in-memory, Redis, or
// PostgreSQL), wires rate limiting and security monitoring, and starts the
// asynchronous audit dispatcher:
//
//	engine, err := innercircle.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithAuditSink(sink).
//		Build()
//
// Unlock tokens are consumed exactly once regardless of backend or
// concurrency; the winning call receives a session bound to the token's
// tier. Tiers form a total order (public < inner-circle < private) and a
// credential grants access to its own tier and everything below it.
//
// Raw secrets never reach storage. Tokens and member keys are stored by
// SHA-256 digest; session identifiers carry enough entropy to be their own
// credential and are stored with a bounded TTL instead.
package innercircle
