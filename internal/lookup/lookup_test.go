package lookup_test

import (
	"maps"
	"testing"

	"github.com/AdguardTeam/urlindex/internal/fasthash"
	"github.com/AdguardTeam/urlindex/internal/lookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogram_BestToken(t *testing.T) {
	t.Parallel()

	h := fasthash.String
	ruleGroups := [][][]uint64{
		{{h("ads"), h("banner")}},
		{{h("ads"), h("track")}},
		{{h("ads")}},
		{{h("com"), h("unique")}},
		{{h("www"), h("com")}},
	}

	hist := lookup.NewHistogram(ruleGroups)
	require.Equal(t, 9, hist.Total())

	assert.Equal(t, 3, hist.Count(h("ads")))
	assert.Equal(t, 1, hist.Count(h("banner")))
	assert.Equal(t, hist.Total(), hist.Count(h("com")))
	assert.Equal(t, hist.Total(), hist.Count(h("www")))
	assert.Equal(t, 0, hist.Count(h("absent")))

	testCases := []struct {
		name  string
		group []uint64
		want  uint64
	}{{
		name:  "rarer",
		group: []uint64{h("ads"), h("banner")},
		want:  h("banner"),
	}, {
		name:  "tie_keeps_first",
		group: []uint64{h("banner"), h("track")},
		want:  h("banner"),
	}, {
		name:  "deprioritized",
		group: []uint64{h("com"), h("unique")},
		want:  h("unique"),
	}, {
		name:  "only_bad",
		group: []uint64{h("www"), h("com")},
		want:  h("www"),
	}, {
		name:  "empty",
		group: nil,
		want:  0,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, hist.BestToken(tc.group))
		})
	}
}

func TestHistogram_empty(t *testing.T) {
	t.Parallel()

	hist := lookup.NewHistogram(nil)
	assert.Equal(t, 0, hist.Total())
	assert.Equal(t, uint64(0), hist.BestToken(nil))
}

func TestBuckets_Insert(t *testing.T) {
	t.Parallel()

	tok := fasthash.String("ads")
	key := lookup.Short(tok)

	b := lookup.NewBuckets()
	b.Insert(tok, 5)
	b.Insert(tok, 1)
	b.Insert(tok, 3)

	require.Equal(t, []uint32{1, 3, 5}, b.Bucket(key))

	b.Insert(tok, 3)
	assert.Equal(t, []uint32{1, 3, 5}, b.Bucket(key))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 3, b.Entries())

	b.Insert(0, 3)
	assert.Equal(t, []uint32{3}, b.Bucket(0))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 4, b.Entries())

	assert.Nil(t, b.Bucket(lookup.Short(fasthash.String("absent"))))
}

func TestBuckets_All(t *testing.T) {
	t.Parallel()

	b := lookup.NewBuckets()
	for i, s := range []string{"ads", "banner", "track", "pixel"} {
		b.Insert(fasthash.String(s), uint32(i))
	}

	var prev uint32
	first := true
	for key := range b.All() {
		if !first {
			assert.Less(t, prev, key)
		}

		first = false
		prev = key
	}

	got := maps.Collect(b.All())
	assert.Len(t, got, 4)
	assert.Equal(t, []uint32{2}, got[lookup.Short(fasthash.String("track"))])
}
