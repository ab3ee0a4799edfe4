package rules_test

import (
	"encoding/binary"
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/urlindex/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainSet(t *testing.T) {
	t.Parallel()

	s := rules.NewDomainSet("b.com", "A.com", "a.com")
	require.Equal(t, 2, s.Len())
	require.NoError(t, s.Validate())

	assert.True(t, s.Has(rules.DomainHash("a.com")))
	assert.True(t, s.Has(rules.DomainHash("B.COM")))
	assert.False(t, s.Has(rules.DomainHash("c.com")))

	assert.True(t, s.HasAny([]uint64{rules.DomainHash("c.com"), rules.DomainHash("b.com")}))
	assert.False(t, s.HasAny(nil))

	assert.Less(t, s.At(0), s.At(1))

	assert.Nil(t, rules.NewDomainSet())
}

func TestDomainSet_Validate(t *testing.T) {
	t.Parallel()

	unsorted := make(rules.DomainSet, 2*rules.DomainHashSize)
	binary.LittleEndian.PutUint64(unsorted, 2)
	binary.LittleEndian.PutUint64(unsorted[rules.DomainHashSize:], 1)

	testCases := []struct {
		name       string
		wantErrMsg string
		in         rules.DomainSet
	}{{
		name:       "nil",
		wantErrMsg: "",
		in:         nil,
	}, {
		name:       "valid",
		wantErrMsg: "",
		in:         rules.NewDomainSet("example.org", "example.com"),
	}, {
		name:       "bad_length",
		wantErrMsg: "domain set length 7: not a multiple of 8",
		in:         make(rules.DomainSet, 7),
	}, {
		name:       "unsorted",
		wantErrMsg: "domain set hash at index 1: not sorted",
		in:         unsorted,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			testutil.AssertErrorMsg(t, tc.wantErrMsg, tc.in.Validate())
		})
	}
}
