package urlindex

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/urlindex/filterlist"
	"github.com/AdguardTeam/urlindex/internal/lookup"
	"github.com/AdguardTeam/urlindex/optimizer"
	"github.com/AdguardTeam/urlindex/rules"
)

// FilterList is an immutable index of network rules.  It is safe for
// concurrent use.  To update the rules, build a new FilterList.
type FilterList struct {
	storage *filterlist.RuleStorage
}

// New builds the index of rs.  c must be valid.  Each rule is put into the
// buckets of the rarest tokens of its token groups.  If c.Optimize is true,
// the optimizable rules sharing a bucket are merged.
//
// New never fails: if the index can't be encoded, the error is logged and the
// result is an empty list that matches nothing.
func New(c *Config, rs []*rules.NetworkRule) (fl *FilterList) {
	ctx := context.Background()

	opt := c.Optimizer
	if opt == nil {
		opt = optimizer.Patterns{}
	}

	ruleGroups := make([][][]uint64, 0, len(rs))
	for _, f := range rs {
		ruleGroups = append(ruleGroups, f.TokenGroups())
	}

	hist := lookup.NewHistogram(ruleGroups)
	b := filterlist.NewBuilder()

	deferred := map[uint64][]*rules.NetworkRule{}
	for i, f := range rs {
		groups := ruleGroups[i]
		if c.Optimize && opt.IsOptimizable(f) {
			for _, g := range groups {
				tok := hist.BestToken(g)
				deferred[tok] = append(deferred[tok], f)
			}

			continue
		}

		idx := b.AddRule(f)
		for _, g := range groups {
			b.Index(hist.BestToken(g), idx)
		}
	}

	for _, tok := range slices.Sorted(maps.Keys(deferred)) {
		for _, f := range opt.Optimize(deferred[tok]) {
			b.Index(tok, b.AddRule(f))
		}
	}

	s, err := b.Finish()
	if err != nil {
		c.Logger.ErrorContext(ctx, "encoding index; using empty list", slogutil.KeyError, err)

		s = errors.Must(filterlist.NewBuilder().Finish())
	}

	c.Logger.DebugContext(
		ctx,
		"index built",
		"input_rules", len(rs),
		"deferred_buckets", len(deferred),
		"rules", s.RulesCount(),
		"buckets", s.BucketsCount(),
		"domain_sets", s.DomainSetsCount(),
		"bytes", len(s.Bytes()),
	)

	return &FilterList{
		storage: s,
	}
}

// FromRaw reconstructs the list from buf, which must have been returned by
// [FilterList.Bytes].  Only the structure of buf is verified.  Errors match
// [filterlist.ErrMalformed] and, for bad domain set references,
// [filterlist.ErrDomainIndex].  buf must not be modified afterwards.
func FromRaw(buf []byte) (fl *FilterList, err error) {
	s, err := filterlist.FromRaw(buf)
	if err != nil {
		return nil, fmt.Errorf("reconstructing filter list: %w", err)
	}

	return &FilterList{
		storage: s,
	}, nil
}

// Bytes returns the serialized form of the list.  The result must not be
// modified.
func (fl *FilterList) Bytes() (b []byte) {
	return fl.storage.Bytes()
}

// RulesCount returns the number of rules in the list, after merging.
func (fl *FilterList) RulesCount() (n int) {
	return fl.storage.RulesCount()
}

// BucketLen returns the number of rules in the bucket of token.
func (fl *FilterList) BucketLen(token uint64) (n int) {
	return fl.storage.Bucket(lookup.Short(token)).Len()
}

// Check returns the first rule matching r in the order of r.Tokens.  Any of
// the matching rules may be returned, the caller must not rely on which one.
// A rule with a tag only matches if the tag is in activeTags, which may be
// nil.  cache is passed to [rules.NetworkRule.Match].
func (fl *FilterList) Check(
	r *rules.Request,
	activeTags *container.MapSet[string],
	cache rules.RegexCache,
) (res *CheckResult, ok bool) {
	if fl.storage.BucketsCount() == 0 {
		return nil, false
	}

	f := &rules.NetworkRule{}
	for _, tok := range r.Tokens {
		b := fl.storage.Bucket(lookup.Short(tok))
		for i := range b.Len() {
			fl.storage.RetrieveNetworkRule(b.At(i), f)
			if isActive(f, activeTags) && f.Match(r, cache) {
				return newCheckResult(f), true
			}
		}
	}

	return nil, false
}

// CheckAll returns all rules matching r in the order of r.Tokens.  A rule is
// returned once even if it's found in several buckets.  See [FilterList.Check]
// for the meaning of the arguments.
func (fl *FilterList) CheckAll(
	r *rules.Request,
	activeTags *container.MapSet[string],
	cache rules.RegexCache,
) (res []*CheckResult) {
	if fl.storage.BucketsCount() == 0 {
		return nil
	}

	var seen []uint32
	f := &rules.NetworkRule{}
	for _, tok := range r.Tokens {
		b := fl.storage.Bucket(lookup.Short(tok))
		for i := range b.Len() {
			idx := b.At(i)

			// Make sure that the same rule isn't returned twice.  This
			// happens when the rule has several token groups or when the
			// short hashes of different tokens collide.
			if slices.Contains(seen, idx) {
				continue
			}

			fl.storage.RetrieveNetworkRule(idx, f)
			if isActive(f, activeTags) && f.Match(r, cache) {
				seen = append(seen, idx)
				res = append(res, newCheckResult(f))
			}
		}
	}

	return res
}

// isActive returns true if f has no tag or its tag is in activeTags.
func isActive(f *rules.NetworkRule, activeTags *container.MapSet[string]) (ok bool) {
	return f.Tag == "" || (activeTags != nil && activeTags.Has(f.Tag))
}
