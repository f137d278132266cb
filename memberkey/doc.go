// Package memberkey manages Inner Circle members and their long-lived
// access keys.
//
// Keys are high-value, 90-day credentials, so unlike sessions they are
// hashed at rest: a store only ever holds the SHA-256 of a key plus a short
// display suffix. Issuance is transactional across the quota check, the
// member upsert, and the key insert: a failed step leaves no partial
// member or key state behind.
//
// Member identity is an email hash; raw emails never reach the credential
// tables. Members are created idempotently on first issuance.
package memberkey
