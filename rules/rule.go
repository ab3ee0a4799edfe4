// Package rules contains the network rule representation consumed by the
// index, the request representation, and the matching predicate.
package rules

import (
	"math/bits"
	"strings"
)

// Mask is a compact set of rule properties.  The lower 16 bits contain the
// [RequestType] flags the rule applies to, zero meaning all types.  The upper
// bits contain the rule options.
type Mask uint32

// Mask options.
const (
	// OptionException marks an allowlist ("@@") rule.
	OptionException Mask = 1 << (16 + iota)

	// OptionImportant is the $important modifier.
	OptionImportant

	// OptionThirdParty is the $third-party modifier.
	OptionThirdParty

	// OptionFirstParty is the $~third-party modifier.
	OptionFirstParty

	// OptionMatchCase is the $match-case modifier.
	OptionMatchCase

	// OptionRegex marks rules whose patterns are regular expressions.
	OptionRegex

	// OptionLeftAnchor means that the patterns must match at the start of the
	// URL or, for rules with a hostname, right after the hostname.
	OptionLeftAnchor

	// OptionRightAnchor means that the patterns must match at the end of the
	// URL.
	OptionRightAnchor

	// OptionRedirect is the $redirect modifier.  The resource name is kept
	// in [NetworkRule.Modifier].
	OptionRedirect

	// OptionCSP is the $csp modifier.  The policy is kept in
	// [NetworkRule.Modifier].
	OptionCSP

	// OptionRemoveparam is the $removeparam modifier.  The parameter is kept
	// in [NetworkRule.Modifier].
	OptionRemoveparam
)

const (
	// maskTypes is the part of the mask containing request types.
	maskTypes Mask = 1<<16 - 1

	// maskOptionsAll is the set of all known options.
	maskOptionsAll = OptionException | OptionImportant | OptionThirdParty |
		OptionFirstParty | OptionMatchCase | OptionRegex | OptionLeftAnchor |
		OptionRightAnchor | OptionRedirect | OptionCSP | OptionRemoveparam

	// maskPattern is the set of options that change how patterns are compiled.
	maskPattern = OptionMatchCase | OptionRegex | OptionLeftAnchor | OptionRightAnchor

	// maskModifiers is the set of options that carry a payload in
	// [NetworkRule.Modifier].
	maskModifiers = OptionRedirect | OptionCSP | OptionRemoveparam
)

// MaskFromTypes returns the mask with the request types set.
func MaskFromTypes(t RequestType) (m Mask) {
	return Mask(t) & maskTypes
}

// Types returns the request types encoded in m.  Zero means all types.
func (m Mask) Types() (t RequestType) {
	return RequestType(m & maskTypes)
}

// Has returns true if all options of o are set in m.
func (m Mask) Has(o Mask) (ok bool) {
	return m&o == o
}

// PatternOptions returns the subset of m that affects pattern compilation.  It
// is suitable as a part of a [RegexCache] key.
func (m Mask) PatternOptions() (o Mask) {
	return m & maskPattern
}

// Count returns the count of enabled options, not counting request types.
func (m Mask) Count() (n int) {
	return bits.OnesCount32(uint32(m &^ maskTypes))
}

// optionNames maps option names to mask values.  Keep in sync with the
// options above.
var optionNames = map[string]Mask{
	"exception":    OptionException,
	"important":    OptionImportant,
	"third-party":  OptionThirdParty,
	"first-party":  OptionFirstParty,
	"match-case":   OptionMatchCase,
	"regex":        OptionRegex,
	"left-anchor":  OptionLeftAnchor,
	"right-anchor": OptionRightAnchor,
	"redirect":     OptionRedirect,
	"csp":          OptionCSP,
	"removeparam":  OptionRemoveparam,
}

// ParseOption returns the mask value for the option name, like "important" or
// "third-party".  ok is false if the name is unknown.
func ParseOption(name string) (o Mask, ok bool) {
	o, ok = optionNames[strings.ToLower(name)]

	return o, ok
}
