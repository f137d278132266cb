// Package tokenstore provides durable storage and atomic state transitions
// for one-time unlock tokens and access sessions.
//
// The [Store] interface is storage-agnostic so the same authorization logic
// runs against a single-process map (development), a Redis deployment
// (multi-instance production), or a relational database. The backend is
// selected once at engine construction and reused for the process lifetime.
//
// The single hard correctness property lives here: ConsumeOneTimeToken is
// atomic per backend. Concurrent redemption attempts of the same token must
// yield exactly one success regardless of interleaving. The memory backend
// consumes under a mutex, the Redis backend runs a server-side Lua script,
// and the Postgres backend uses a guarded single UPDATE. A get-then-set from
// the application tier is never acceptable.
//
// Stores never see raw secrets. Callers hash tokens before lookup; session
// identifiers are themselves high-entropy short-lived bearer values and are
// stored unhashed by documented design.
package tokenstore
