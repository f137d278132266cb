// Package credential owns secret generation and one-way hashing for the
// access-control engine: member keys, session identifiers, and one-time
// unlock tokens.
//
// All secrets produced here are high-entropy random values. Hashing is plain
// SHA-256 without a salt: the inputs are never user-chosen, so a KDF would
// add per-request latency without adding attack resistance. Raw secrets are
// returned to the caller exactly once and are never persisted by any store
// in this module.
package credential
