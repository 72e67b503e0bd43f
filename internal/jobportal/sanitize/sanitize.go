// Package sanitize cleans free-text filter input before it reaches
// substring or regex matching in the database.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
)

const (
	DefaultTextMaxLen  = 1000
	DefaultRegexMaxLen = 500
	maxRegexGroups     = 10
)

// dangerousPatterns match regex shapes prone to catastrophic backtracking.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(\.\*\)\+`),
	regexp.MustCompile(`\(\.\+\)\+`),
	regexp.MustCompile(`\(\[.*\]\*\)\+`),
	regexp.MustCompile(`\(\[.*\]\+\)\+`),
	regexp.MustCompile(`\(\.\*\)\*`),
	regexp.MustCompile(`\(\.\+\)\*`),
	// any group whose body ends in an unescaped unbounded quantifier, repeated
	// unboundedly: (a*)+, (\w+)*. Escaped atoms are consumed whole, so (foo\+)+ passes.
	regexp.MustCompile(`\((?:[^()\\]|\\.)+[*+]\)[*+]`),
	// nested quantifier with bounds: (a+){2,5}
	regexp.MustCompile(`\(.*\+.*\)\{.*,.*\}`),
}

// Text strips NUL bytes, trims surrounding whitespace and truncates the
// result to maxLen runes. A non-positive maxLen selects DefaultTextMaxLen.
func Text(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTextMaxLen
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	return s
}

// EscapeLike escapes the LIKE metacharacters so the value matches literally
// under ESCAPE '\'. The backslash is escaped first to avoid double-escaping.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ContainsPattern returns the escaped "%value%" pattern used for contains filters.
func ContainsPattern(s string) string {
	return "%" + EscapeLike(s) + "%"
}

// ValidateRegex rejects patterns that are too long, structurally dangerous,
// too deeply grouped or that fail to compile. The pattern is never rewritten.
// A non-positive maxLen selects DefaultRegexMaxLen.
func ValidateRegex(pattern string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultRegexMaxLen
	}
	if utf8.RuneCountInString(pattern) > maxLen {
		return "", fmt.Errorf("%w: regex pattern exceeds maximum length of %d characters", e.ErrInvalidFilter, maxLen)
	}
	for _, d := range dangerousPatterns {
		if d.MatchString(pattern) {
			return "", fmt.Errorf("%w: regex pattern contains potentially dangerous constructs", e.ErrInvalidFilter)
		}
	}
	if countGroups(pattern) > maxRegexGroups {
		return "", fmt.Errorf("%w: regex pattern contains too many groups", e.ErrInvalidFilter)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return "", fmt.Errorf("%w: invalid regex pattern: %v", e.ErrInvalidFilter, err)
	}
	return pattern, nil
}

// countGroups counts opening parentheses that are not backslash-escaped.
func countGroups(pattern string) int {
	n := 0
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '(':
			n++
		}
	}
	return n
}
