// Package middleware exposes HTTP middleware adapters for tier-gated
// routes built on top of the innercircle Engine.
//
// # Guards
//
//   - [Guard] — requires the given tier, resolving either credential kind.
//   - [RequireInnerCircle] — shorthand for the members tier.
//   - [RequirePrivate] — shorthand for the most restricted tier.
//
// Each guard resolves the access cookie or a Bearer member key, asks the
// Engine for a decision, and injects the resolved credential into the
// request context.
//
// This package translates HTTP semantics into Engine calls; it makes no
// access decisions of its own.
package middleware
