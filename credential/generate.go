package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

// MemberKeyPrefix identifies member keys on the wire. The prefix is not
// secret; it exists so scanners and support tooling can recognize leaked
// keys without holding one.
const MemberKeyPrefix = "icl_"

const (
	memberKeySecretSize = 32
	sessionIDSize       = 24
	oneTimeTokenSize    = 32
)

// ErrInvalidKeyFormat is returned by [ParseMemberKey] for input that is not
// a well-formed member key.
var ErrInvalidKeyFormat = errors.New("invalid member key format")

// NewMemberKey generates a raw member key: the icl_ prefix followed by
// 32 random bytes in base64url. The raw value must be shown to the member
// once and discarded; only its hash and suffix are stored.
func NewMemberKey() (string, error) {
	var secret [memberKeySecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return MemberKeyPrefix + base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// ParseMemberKey validates the shape of a presented member key without
// touching storage. It rejects empty input, a missing prefix, and payloads
// that are not base64url of the expected secret size.
func ParseMemberKey(raw string) (string, error) {
	if raw == "" || !strings.HasPrefix(raw, MemberKeyPrefix) {
		return "", ErrInvalidKeyFormat
	}
	payload := raw[len(MemberKeyPrefix):]
	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || len(decoded) != memberKeySecretSize {
		return "", ErrInvalidKeyFormat
	}
	return raw, nil
}

// NewSessionID generates an opaque session identifier with 192 bits of
// entropy from the platform CSPRNG. The identifier itself is the bearer
// credential, so it is stored unhashed with a bounded TTL.
func NewSessionID() (string, error) {
	var raw [sessionIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewOneTimeToken generates an opaque single-use token for unlock links.
func NewOneTimeToken() (string, error) {
	var raw [oneTimeTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
