package rules

import (
	"regexp"
	"strings"
)

// Regular expression parts used to convert rule patterns.
const (
	// RegexAnyCharacter is the regular expression for the '*' wildcard.
	RegexAnyCharacter = ".*"

	// RegexSeparator is the regular expression for the '^' separator.  It
	// matches any character except a letter, a digit, or one of "_-.%", or
	// the end of the URL.
	RegexSeparator = "([^ a-zA-Z0-9.%_-]|$)"

	// RegexStartString is the regular expression for the left anchor.
	RegexStartString = "^"

	// RegexEndString is the regular expression for the right anchor.
	RegexEndString = "$"

	// regexIgnoreCase is the flag prefix for case-insensitive matching.
	regexIgnoreCase = "(?i)"
)

// Special characters of rule patterns.
const (
	// MaskAnyCharacter is the wildcard.
	MaskAnyCharacter = '*'

	// MaskSeparator matches a single separator character or the end of the
	// URL.
	MaskSeparator = '^'
)

// RegexCache is a cache of compiled rule patterns passed to [NetworkRule.Match]
// by the caller.  The index never stores it.  Implementations must be safe for
// the way the caller shares them: either restricted to a single goroutine or
// internally synchronized.
type RegexCache interface {
	// Regexp returns the compiled form of pattern under the pattern options
	// of m, see [Mask.PatternOptions].  Implementations should use
	// [CompilePattern] on a cache miss.  pattern may reference the memory of
	// a serialized index, so implementations must clone it before keeping.
	Regexp(pattern string, m Mask) (re *regexp.Regexp, err error)
}

// CompilePattern compiles the rule pattern under the pattern options of m.
func CompilePattern(pattern string, m Mask) (re *regexp.Regexp, err error) {
	var expr string
	if m.Has(OptionRegex) {
		expr = pattern
	} else {
		expr = patternToRegexp(pattern, m.Has(OptionLeftAnchor), m.Has(OptionRightAnchor))
	}

	if !m.Has(OptionMatchCase) {
		expr = regexIgnoreCase + expr
	}

	return regexp.Compile(expr)
}

// patternToRegexp converts a rule pattern with wildcards and separators into
// a regular expression.
func patternToRegexp(pattern string, leftAnchor, rightAnchor bool) (expr string) {
	sb := &strings.Builder{}
	sb.Grow(len(pattern) + len(RegexSeparator))

	if leftAnchor {
		sb.WriteString(RegexStartString)
	}

	for i := range len(pattern) {
		switch c := pattern[i]; c {
		case MaskAnyCharacter:
			sb.WriteString(RegexAnyCharacter)
		case MaskSeparator:
			sb.WriteString(RegexSeparator)
		default:
			if strings.IndexByte(`\.+?()|[]{}$/`, c) >= 0 {
				sb.WriteByte('\\')
			}

			sb.WriteByte(c)
		}
	}

	if rightAnchor {
		sb.WriteString(RegexEndString)
	}

	return sb.String()
}

// isPlainPattern returns true if pattern can be matched with a substring
// search.  Patterns with upper-case letters are not plain, since the request
// URL is matched in lower case.
func isPlainPattern(pattern string) (ok bool) {
	for i := range len(pattern) {
		switch c := pattern[i]; {
		case c == MaskAnyCharacter, c == MaskSeparator, c >= 'A' && c <= 'Z':
			return false
		}
	}

	return true
}
