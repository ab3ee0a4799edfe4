package rules_test

import (
	"regexp"
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/urlindex/internal/fasthash"
	"github.com/AdguardTeam/urlindex/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache is a [rules.RegexCache] for tests that compiles on every call
// and counts the calls.
type countingCache struct {
	calls int
}

// type check
var _ rules.RegexCache = (*countingCache)(nil)

// Regexp implements the [rules.RegexCache] interface for *countingCache.
func (c *countingCache) Regexp(pattern string, m rules.Mask) (re *regexp.Regexp, err error) {
	c.calls++

	return rules.CompilePattern(pattern, m)
}

func TestNetworkRule_TokenGroups(t *testing.T) {
	t.Parallel()

	h := fasthash.String

	testCases := []struct {
		rule *rules.NetworkRule
		name string
		want [][]uint64
	}{{
		rule: &rules.NetworkRule{
			Patterns: []string{"/ads/"},
		},
		name: "pattern",
		want: [][]uint64{{h("ads")}},
	}, {
		rule: &rules.NetworkRule{
			Patterns:         []string{"/ads/*"},
			PermittedDomains: rules.NewDomainSet("a.com"),
		},
		name: "single_domain",
		want: [][]uint64{{h("a.com"), h("ads")}},
	}, {
		rule: &rules.NetworkRule{
			Hostname: "example.org",
		},
		name: "hostname",
		want: [][]uint64{{h("example"), h("org")}},
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{`/banner\d+/`},
			Mask:     rules.OptionRegex,
		},
		name: "regex",
		want: [][]uint64{nil},
	}, {
		rule: &rules.NetworkRule{
			Modifier: "UTM_source",
			Mask:     rules.OptionRemoveparam,
		},
		name: "removeparam",
		want: [][]uint64{{h("utm"), h("source")}},
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"ad"},
		},
		name: "no_tokens",
		want: [][]uint64{nil},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.rule.TokenGroups())
		})
	}

	t.Run("domain_groups", func(t *testing.T) {
		t.Parallel()

		rule := &rules.NetworkRule{
			PermittedDomains: rules.NewDomainSet("a.com", "b.com"),
		}

		groups := rule.TokenGroups()
		require.Len(t, groups, 2)

		assert.ElementsMatch(t, [][]uint64{{h("a.com")}, {h("b.com")}}, groups)
	})
}

func TestNetworkRule_Match(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		rule      *rules.NetworkRule
		name      string
		url       string
		sourceURL string
		typ       rules.RequestType
		want      bool
	}{{
		rule: &rules.NetworkRule{
			Hostname: "example.org",
			Patterns: []string{"/ads/"},
			Mask:     rules.OptionLeftAnchor,
		},
		name: "hostname",
		url:  "http://example.org/ads/x",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Hostname: "example.org",
			Patterns: []string{"/ads/"},
		},
		name: "subdomain",
		url:  "http://sub.example.org/ads/",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Hostname: "a.com",
			Patterns: []string{"/p"},
			Mask:     rules.OptionLeftAnchor,
		},
		name: "hostname_in_userinfo",
		url:  "http://xa.com@a.com/p",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Hostname: "a.com",
			Patterns: []string{":8080/p"},
			Mask:     rules.OptionLeftAnchor,
		},
		name: "hostname_port",
		url:  "http://a.com:8080/p",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Hostname: "example.org",
		},
		name: "other_domain",
		url:  "http://notexample.org/ads/",
		want: false,
	}, {
		rule: &rules.NetworkRule{
			Mask: rules.OptionThirdParty,
		},
		name: "third_party_no",
		url:  "http://example.org/",
		want: false,
	}, {
		rule: &rules.NetworkRule{
			Mask: rules.OptionThirdParty,
		},
		name:      "third_party_yes",
		url:       "http://example.org/",
		sourceURL: "http://example.com/",
		want:      true,
	}, {
		rule: &rules.NetworkRule{
			PermittedDomains: rules.NewDomainSet("a.com"),
		},
		name:      "permitted_domain",
		url:       "http://example.org/",
		sourceURL: "http://sub.a.com/",
		want:      true,
	}, {
		rule: &rules.NetworkRule{
			RestrictedDomains: rules.NewDomainSet("a.com"),
		},
		name:      "restricted_domain",
		url:       "http://example.org/",
		sourceURL: "http://sub.a.com/",
		want:      false,
	}, {
		rule: &rules.NetworkRule{
			Mask: rules.MaskFromTypes(rules.TypeScript),
		},
		name: "request_type",
		url:  "http://example.org/",
		typ:  rules.TypeImage,
		want: false,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/ads/*/banner"},
		},
		name: "wildcard",
		url:  "http://a.com/ADS/x/banner",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"ads^"},
		},
		name: "separator",
		url:  "http://a.com/ads?x",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"ads^"},
		},
		name: "separator_no",
		url:  "http://a.com/adsx",
		want: false,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{`banner\d+`},
			Mask:     rules.OptionRegex,
		},
		name: "regex",
		url:  "http://a.com/banner12",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/Ads/"},
			Mask:     rules.OptionMatchCase,
		},
		name: "match_case",
		url:  "http://a.com/Ads/",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/Ads/"},
			Mask:     rules.OptionMatchCase,
		},
		name: "match_case_no",
		url:  "http://a.com/ads/",
		want: false,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"http://a.com/"},
			Mask:     rules.OptionLeftAnchor | rules.OptionRightAnchor,
		},
		name: "both_anchors",
		url:  "http://a.com/",
		want: true,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/x/", "/ads/"},
		},
		name: "alternatives",
		url:  "http://a.com/ads/",
		want: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			typ := tc.typ
			if typ == 0 {
				typ = rules.TypeOther
			}

			r := rules.NewRequest(tc.url, tc.sourceURL, typ)
			assert.Equal(t, tc.want, tc.rule.Match(r, nil))
			assert.Equal(t, tc.want, tc.rule.Match(r, &countingCache{}))
		})
	}
}

func TestNetworkRule_Match_cache(t *testing.T) {
	t.Parallel()

	cache := &countingCache{}
	r := rules.NewRequest("http://a.com/ads/x/banner", "", rules.TypeOther)

	plain := &rules.NetworkRule{Patterns: []string{"/ads/"}}
	require.True(t, plain.Match(r, cache))
	assert.Equal(t, 0, cache.calls)

	wildcard := &rules.NetworkRule{Patterns: []string{"/ads/*/banner"}}
	require.True(t, wildcard.Match(r, cache))
	assert.Equal(t, 1, cache.calls)
}

func TestNetworkRule_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		rule       *rules.NetworkRule
		name       string
		wantErrMsg string
	}{{
		rule: &rules.NetworkRule{
			Hostname:         "example.org",
			Patterns:         []string{"/ads/*"},
			PermittedDomains: rules.NewDomainSet("a.com"),
		},
		name:       "valid",
		wantErrMsg: "",
	}, {
		rule: &rules.NetworkRule{
			Mask: rules.OptionThirdParty | rules.OptionFirstParty,
		},
		name:       "both_parties",
		wantErrMsg: "mask: both third-party and first-party options",
	}, {
		rule: &rules.NetworkRule{
			Hostname: "bad host",
		},
		name:       "bad_hostname",
		wantErrMsg: `hostname: bad value "bad host"`,
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/ads/", ""},
		},
		name:       "empty_pattern",
		wantErrMsg: "patterns: at index 1: empty pattern",
	}, {
		rule: &rules.NetworkRule{
			PermittedDomains: make(rules.DomainSet, 3),
		},
		name:       "bad_domains",
		wantErrMsg: "permitted domains: domain set length 3: not a multiple of 8",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			testutil.AssertErrorMsg(t, tc.wantErrMsg, tc.rule.Validate())
		})
	}

	t.Run("regex", func(t *testing.T) {
		t.Parallel()

		rule := &rules.NetworkRule{
			Patterns: []string{`banner(\d+`},
			Mask:     rules.OptionRegex,
		}

		assert.Error(t, rule.Validate())
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()

		var rule *rules.NetworkRule
		assert.ErrorIs(t, rule.Validate(), errors.ErrNoValue)
	})

	t.Run("empty_pattern_is", func(t *testing.T) {
		t.Parallel()

		rule := &rules.NetworkRule{Patterns: []string{""}}
		assert.ErrorIs(t, rule.Validate(), rules.ErrEmptyPattern)
	})
}
