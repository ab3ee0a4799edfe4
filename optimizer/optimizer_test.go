package optimizer_test

import (
	"testing"

	"github.com/AdguardTeam/urlindex/optimizer"
	"github.com/AdguardTeam/urlindex/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatterns_IsOptimizable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		rule *rules.NetworkRule
		want assert.BoolAssertionFunc
		name string
	}{{
		rule: &rules.NetworkRule{Patterns: []string{"/ads/"}},
		want: assert.True,
		name: "plain",
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/ads/"},
			Tag:      "social",
			Mask:     rules.OptionException | rules.MaskFromTypes(rules.TypeImage),
		},
		want: assert.True,
		name: "tag_and_mask",
	}, {
		rule: &rules.NetworkRule{},
		want: assert.False,
		name: "no_patterns",
	}, {
		rule: &rules.NetworkRule{Patterns: []string{"/ads/"}, Hostname: "example.org"},
		want: assert.False,
		name: "hostname",
	}, {
		rule: &rules.NetworkRule{
			Patterns:         []string{"/ads/"},
			PermittedDomains: rules.NewDomainSet("a.com"),
		},
		want: assert.False,
		name: "domains",
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/ads/"},
			Modifier: "noopjs",
			Mask:     rules.OptionRedirect,
		},
		want: assert.False,
		name: "redirect",
	}, {
		rule: &rules.NetworkRule{
			Patterns: []string{"/ads/"},
			Mask:     rules.OptionThirdParty | rules.OptionFirstParty,
		},
		want: assert.False,
		name: "invalid",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.want(t, optimizer.Patterns{}.IsOptimizable(tc.rule))
		})
	}
}

func TestPatterns_Optimize(t *testing.T) {
	t.Parallel()

	rs := []*rules.NetworkRule{{
		RuleText: "/ads/banner",
		Patterns: []string{"/ads/banner"},
	}, {
		RuleText: "/ads/banner$tag=social",
		Patterns: []string{"/ads/banner"},
		Tag:      "social",
	}, {
		RuleText: "/ads/popup",
		Patterns: []string{"/ads/popup"},
	}, {
		RuleText: "/ads/banner",
		Patterns: []string{"/ads/banner"},
	}}

	res := optimizer.Patterns{}.Optimize(rs)
	require.Len(t, res, 2)

	assert.Equal(t, &rules.NetworkRule{
		RuleText: "/ads/banner <+> /ads/popup <+> /ads/banner",
		Patterns: []string{"/ads/banner", "/ads/popup"},
	}, res[0])

	assert.Same(t, rs[1], res[1])

	assert.Empty(t, optimizer.Patterns{}.Optimize(nil))
}
