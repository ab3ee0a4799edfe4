// Package optimizer contains the default strategy of merging rules within an
// index bucket.
package optimizer

import (
	"slices"
	"strings"

	"github.com/AdguardTeam/urlindex/rules"
)

// TextSeparator separates the texts of the merged rules in the text of the
// result.
const TextSeparator = " <+> "

// Patterns merges the rules that differ only by their patterns into a single
// rule with all of the patterns as alternatives.  Patterns is stateless, its
// zero value is ready to use.
type Patterns struct{}

// IsOptimizable returns true if f can be merged with other rules.  A rule is
// eligible if it has patterns and no properties other than the mask and the
// tag that would have to match between the merged rules.  Rules that fail
// validation are never eligible.
func (Patterns) IsOptimizable(f *rules.NetworkRule) (ok bool) {
	switch {
	case
		len(f.Patterns) == 0,
		f.Hostname != "",
		f.Modifier != "",
		len(f.PermittedDomains) > 0,
		len(f.RestrictedDomains) > 0,
		f.Mask.Has(rules.OptionRedirect),
		f.Mask.Has(rules.OptionCSP),
		f.Mask.Has(rules.OptionRemoveparam):
		return false
	default:
		return f.Validate() == nil
	}
}

// groupKey is the key of the rules that can be merged together.
type groupKey struct {
	tag  string
	mask rules.Mask
}

// Optimize returns the rules with those having the same mask and tag merged.
// The order of the result follows the first occurrence of each group in rs.
// rs must only contain the rules for which IsOptimizable returned true.
func (Patterns) Optimize(rs []*rules.NetworkRule) (res []*rules.NetworkRule) {
	groups := map[groupKey][]*rules.NetworkRule{}
	var keys []groupKey
	for _, f := range rs {
		k := groupKey{tag: f.Tag, mask: f.Mask}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}

		groups[k] = append(groups[k], f)
	}

	res = make([]*rules.NetworkRule, 0, len(keys))
	for _, k := range keys {
		res = append(res, merge(groups[k]))
	}

	return res
}

// merge returns a rule with the union of the patterns of rs.  If there is only
// one rule, it's returned as is.
func merge(rs []*rules.NetworkRule) (f *rules.NetworkRule) {
	if len(rs) == 1 {
		return rs[0]
	}

	texts := make([]string, 0, len(rs))
	var patterns []string
	for _, r := range rs {
		texts = append(texts, r.RuleText)
		for _, p := range r.Patterns {
			if !slices.Contains(patterns, p) {
				patterns = append(patterns, p)
			}
		}
	}

	return &rules.NetworkRule{
		RuleText: strings.Join(texts, TextSeparator),
		Tag:      rs[0].Tag,
		Patterns: patterns,
		Mask:     rs[0].Mask,
	}
}
