package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash returns the SHA-256 digest of the raw secret's UTF-8 bytes.
// It is deterministic and defined for every input, including the empty
// string, which hashes to the standard SHA-256 of zero bytes.
func Hash(raw string) [32]byte {
	return sha256.Sum256([]byte(raw))
}

// HashHex returns the lowercase hex encoding of [Hash]. Stores use this as
// the lookup key so raw secrets never reach a backend.
func HashHex(raw string) string {
	sum := Hash(raw)
	return hex.EncodeToString(sum[:])
}

// HashPrefix returns the first n hex characters of the digest, used for
// indexed prefix lookups. n is clamped to the digest length.
func HashPrefix(raw string, n int) string {
	h := HashHex(raw)
	if n <= 0 {
		return ""
	}
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}

// Suffix returns the trailing n characters of a raw secret for non-secret
// display purposes ("key ending in ...Ab3dE9xQ"). Short inputs are returned
// whole.
func Suffix(raw string, n int) string {
	if n <= 0 || len(raw) <= n {
		return raw
	}
	return raw[len(raw)-n:]
}

// Equal compares two raw secrets in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
