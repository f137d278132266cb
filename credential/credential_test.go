package credential

import (
	"strings"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	inputs := []string{"", "a", "icl_abc123", "user@example.com", strings.Repeat("x", 4096)}

	seen := map[string]string{}
	for _, in := range inputs {
		first := HashHex(in)
		second := HashHex(in)
		if first != second {
			t.Fatalf("hash of %q not deterministic: %s vs %s", in, first, second)
		}
		if len(first) != 64 {
			t.Fatalf("hash of %q has length %d, want 64", in, len(first))
		}
		if prev, ok := seen[first]; ok {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[first] = in
	}
}

func TestHashEmptyStringDefined(t *testing.T) {
	// SHA-256 of zero bytes is a fixed well-known digest.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := HashHex(""); got != want {
		t.Fatalf("empty string digest = %s, want %s", got, want)
	}
}

func TestHashPrefixClamped(t *testing.T) {
	if got := HashPrefix("x", 8); len(got) != 8 {
		t.Fatalf("prefix length = %d, want 8", len(got))
	}
	if got := HashPrefix("x", 1000); len(got) != 64 {
		t.Fatalf("oversized prefix length = %d, want 64", len(got))
	}
	if got := HashPrefix("x", 0); got != "" {
		t.Fatalf("zero prefix = %q, want empty", got)
	}
}

func TestNewMemberKeyShape(t *testing.T) {
	raw, err := NewMemberKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(raw, MemberKeyPrefix) {
		t.Fatalf("key %q missing prefix", raw)
	}
	if _, err := ParseMemberKey(raw); err != nil {
		t.Fatalf("generated key failed parse: %v", err)
	}

	other, err := NewMemberKey()
	if err != nil {
		t.Fatalf("generate second: %v", err)
	}
	if raw == other {
		t.Fatal("two generated keys are identical")
	}
}

func TestParseMemberKeyRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"icl_",
		"icl_short",
		"not-a-key",
		"ICL_" + strings.Repeat("A", 43),
		"icl_" + strings.Repeat("!", 43),
	}
	for _, raw := range bad {
		if _, err := ParseMemberKey(raw); err == nil {
			t.Errorf("ParseMemberKey(%q) accepted malformed input", raw)
		}
	}
}

func TestSuffix(t *testing.T) {
	if got := Suffix("icl_abcdefgh", 8); got != "abcdefgh" {
		t.Fatalf("suffix = %q", got)
	}
	if got := Suffix("ab", 8); got != "ab" {
		t.Fatalf("short suffix = %q", got)
	}
}

func TestSessionIDEntropy(t *testing.T) {
	a, err := NewSessionID()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := NewSessionID()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatal("two session ids are identical")
	}
	// 24 raw bytes encode to 32 base64url chars; 128-bit minimum entropy.
	if len(a) != 32 {
		t.Fatalf("session id length = %d, want 32", len(a))
	}
}
