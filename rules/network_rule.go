package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/urlindex/internal/ufnet"
)

// ErrEmptyPattern is returned by [NetworkRule.Validate] for rules with an
// empty string among their patterns.
const ErrEmptyPattern errors.Error = "empty pattern"

// NetworkRule is a parsed basic filtering rule.  Parsing of the rule text is
// done elsewhere, the index only needs the structured form.
//
// Patterns and Hostname must be in lower case unless OptionMatchCase is set.
// A NetworkRule decoded from a serialized index references the memory of that
// index and must not be modified.
type NetworkRule struct {
	// RuleText is the original rule text, if any.
	RuleText string

	// Hostname is the hostname from the "||" anchor, if any.  The rule only
	// matches requests to this hostname and its subdomains, and the patterns
	// are matched against the part of the URL after the hostname.
	Hostname string

	// Modifier is the payload of the $redirect, $csp, or $removeparam
	// modifier, if any.
	Modifier string

	// Tag is the category of the rule, if any.  A tagged rule only matches if
	// the tag is active.
	Tag string

	// Patterns are the alternative URL patterns.  A pattern may contain the
	// '*' wildcard and the '^' separator.  If OptionRegex is set, the patterns
	// are regular expressions.  A rule without patterns matches any URL.
	Patterns []string

	// PermittedDomains are the source domains from the $domain modifier the
	// rule is restricted to.
	PermittedDomains DomainSet

	// RestrictedDomains are the source domains from the $domain modifier the
	// rule is disabled on.
	RestrictedDomains DomainSet

	// Mask contains the request types and options of the rule.
	Mask Mask
}

// String returns original rule text
func (f *NetworkRule) String() string {
	return f.RuleText
}

// IsException returns true if f is an allowlist rule.
func (f *NetworkRule) IsException() (ok bool) {
	return f.Mask.Has(OptionException)
}

// IsImportant returns true if f has the $important modifier.
func (f *NetworkRule) IsImportant() (ok bool) {
	return f.Mask.Has(OptionImportant)
}

// TokenGroups returns the alternative groups of tokens the rule can be indexed
// by.  Each group is a set of candidate tokens, any one of which is enough to
// find the rule.  A group may be empty, in which case the rule can only be
// found by the fallback token 0.  There is always at least one group.
func (f *NetworkRule) TokenGroups() (groups [][]uint64) {
	var tokens []uint64

	permNum, restrNum := f.PermittedDomains.Len(), f.RestrictedDomains.Len()
	if permNum == 1 && restrNum == 0 {
		tokens = append(tokens, f.PermittedDomains.At(0))
	}

	if !f.Mask.Has(OptionRegex) {
		opts := tokenizeOpts{
			pattern:   true,
			skipFirst: !f.Mask.Has(OptionLeftAnchor),
			skipLast:  !f.Mask.Has(OptionRightAnchor),
		}

		for _, p := range f.Patterns {
			tokens = appendTokens(tokens, p, opts)
		}
	}

	if f.Hostname != "" {
		tokens = appendTokens(tokens, f.Hostname, tokenizeOpts{})
	}

	if len(tokens) == 0 && f.Mask.Has(OptionRemoveparam) {
		tokens = appendTokens(tokens, f.Modifier, tokenizeOpts{})
	}

	if len(tokens) == 0 && permNum > 0 && restrNum == 0 {
		groups = make([][]uint64, 0, permNum)
		for i := range permNum {
			groups = append(groups, []uint64{f.PermittedDomains.At(i)})
		}

		return groups
	}

	return [][]uint64{tokens}
}

// Match checks if this filtering rule matches the specified request.  cache is
// used to compile the patterns that can't be matched with a substring search.
// If cache is nil, such patterns are compiled on every call.
func (f *NetworkRule) Match(r *Request, cache RegexCache) (ok bool) {
	switch {
	case
		f.Mask.Has(OptionThirdParty) && !r.ThirdParty,
		f.Mask.Has(OptionFirstParty) && r.ThirdParty,
		!f.matchRequestType(r.RequestType),
		!f.matchSourceDomain(r.SourceHashes):
		return false
	}

	target, ok := f.matchHostname(r)
	if !ok {
		return false
	}

	return f.matchPatterns(target, cache)
}

// matchRequestType checks if the specified request type matches the rule
// properties.
func (f *NetworkRule) matchRequestType(requestType RequestType) (ok bool) {
	permitted := f.Mask.Types()

	return permitted == 0 || permitted&requestType != 0
}

// matchSourceDomain checks if the specified filtering rule is allowed on the
// source domain with the given hashes.
func (f *NetworkRule) matchSourceDomain(sourceHashes []uint64) (ok bool) {
	if len(f.RestrictedDomains) > 0 && f.RestrictedDomains.HasAny(sourceHashes) {
		return false
	}

	return len(f.PermittedDomains) == 0 || f.PermittedDomains.HasAny(sourceHashes)
}

// matchHostname checks the hostname anchor of f and returns the part of the
// request URL the patterns must be matched against.  If OptionMatchCase is set,
// target has the original case, otherwise it's in lower case.
func (f *NetworkRule) matchHostname(r *Request) (target string, ok bool) {
	target = r.URLLowerCase
	if f.Mask.Has(OptionMatchCase) {
		target = r.URL
	}

	if f.Hostname == "" {
		return target, true
	}

	if !isDomainOrSubdomain(r.Hostname, strings.ToLower(f.Hostname)) {
		return "", false
	}

	_, end := ufnet.HostnameRange(target)

	return target[end:], true
}

// matchPatterns returns true if any of the patterns of f matches target.
func (f *NetworkRule) matchPatterns(target string, cache RegexCache) (ok bool) {
	if len(f.Patterns) == 0 {
		return true
	}

	for _, p := range f.Patterns {
		if f.matchPattern(p, target, cache) {
			return true
		}
	}

	return false
}

// matchPattern returns true if pattern matches target.
func (f *NetworkRule) matchPattern(pattern, target string, cache RegexCache) (ok bool) {
	if !f.Mask.Has(OptionRegex) && isPlainPattern(pattern) {
		left, right := f.Mask.Has(OptionLeftAnchor), f.Mask.Has(OptionRightAnchor)
		switch {
		case left && right:
			return target == pattern
		case left:
			return strings.HasPrefix(target, pattern)
		case right:
			return strings.HasSuffix(target, pattern)
		default:
			return strings.Contains(target, pattern)
		}
	}

	var re *regexp.Regexp
	var err error
	if cache != nil {
		re, err = cache.Regexp(pattern, f.Mask.PatternOptions())
	} else {
		re, err = CompilePattern(pattern, f.Mask.PatternOptions())
	}

	// Invalid patterns never match.
	return err == nil && re.MatchString(target)
}

// Validate returns an error if f is inconsistent.  Rules that fail validation
// can still be indexed, but they aren't eligible for optimization.
func (f *NetworkRule) Validate() (err error) {
	if f == nil {
		return errors.ErrNoValue
	}

	var errs []error

	if unknown := f.Mask &^ (maskTypes | maskOptionsAll); unknown != 0 {
		errs = append(errs, fmt.Errorf("mask: unknown options %#x", uint32(unknown)))
	}

	if unknown := f.Mask.Types() &^ typeAll; unknown != 0 {
		errs = append(errs, fmt.Errorf("mask: unknown request types %#x", uint32(unknown)))
	}

	if f.Mask.Has(OptionThirdParty | OptionFirstParty) {
		errs = append(errs, errors.Error("mask: both third-party and first-party options"))
	}

	if f.Hostname != "" && !isValidHostname(f.Hostname) {
		errs = append(errs, fmt.Errorf("hostname: bad value %q", f.Hostname))
	}

	errs = append(errs, f.validatePatterns()...)

	if err = f.PermittedDomains.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("permitted domains: %w", err))
	}

	if err = f.RestrictedDomains.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("restricted domains: %w", err))
	}

	return errors.Join(errs...)
}

// validatePatterns returns the errors of the patterns of f, if any.
func (f *NetworkRule) validatePatterns() (errs []error) {
	for i, p := range f.Patterns {
		if p == "" {
			errs = append(errs, fmt.Errorf("patterns: at index %d: %w", i, ErrEmptyPattern))

			continue
		}

		if f.Mask.Has(OptionRegex) || !isPlainPattern(p) {
			_, err := CompilePattern(p, f.Mask.PatternOptions())
			if err != nil {
				errs = append(errs, fmt.Errorf("patterns: at index %d: %w", i, err))
			}
		}
	}

	return errs
}
