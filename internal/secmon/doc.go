// Package secmon provides pattern-based anomaly detection and automatic
// blocking for the access-control engine.
//
// The monitor keeps a bounded ring of recent events and a per-identifier
// incident counter. It blocks an identifier when a critical event arrives
// or the counter crosses a threshold. Detection functions are pure
// pattern-matchers over request strings: false positives are acceptable
// defense in depth, and malformed or empty input always returns false.
package secmon
