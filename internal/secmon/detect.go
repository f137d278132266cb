package secmon

import (
	"regexp"
	"strings"
)

// Pattern matchers for common injection shapes. Deliberately loose: these
// feed the incident counter, not a parser, so a false positive costs one
// incident point while a false negative costs nothing extra (the real
// defense is parameterized queries and hashing upstream).
var (
	sqlInjectionPattern = regexp.MustCompile(
		`(?i)(\bunion\b[\s/*]+\bselect\b|\bselect\b.+\bfrom\b|\binsert\b[\s/*]+\binto\b|\bdrop\b[\s/*]+\btable\b|\bor\b\s+\d+\s*=\s*\d+|'\s*or\s*'|--\s|;\s*drop\b|\bexec\b\s*\()`)

	xssPattern = regexp.MustCompile(
		`(?i)(<\s*script|javascript\s*:|\bon(?:error|load|click|mouseover)\s*=|<\s*iframe|<\s*img[^>]+onerror)`)

	pathTraversalPattern = regexp.MustCompile(
		`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f|%252e%252e)`)
)

// DetectSQLInjection reports whether the input resembles a SQL injection
// probe. Empty input is never a match.
func DetectSQLInjection(s string) bool {
	if s == "" {
		return false
	}
	return sqlInjectionPattern.MatchString(s)
}

// DetectXSS reports whether the input resembles a script injection probe.
func DetectXSS(s string) bool {
	if s == "" {
		return false
	}
	return xssPattern.MatchString(s)
}

// DetectPathTraversal reports whether the input tries to escape a path
// root, including the common percent-encoded spellings.
func DetectPathTraversal(s string) bool {
	if s == "" {
		return false
	}
	return pathTraversalPattern.MatchString(strings.ToLower(s))
}
