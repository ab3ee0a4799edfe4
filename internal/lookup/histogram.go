package lookup

import (
	"math"

	"github.com/AdguardTeam/urlindex/internal/fasthash"
)

// Histogram contains the number of rule token occurrences per bucket key.  It
// helps to choose the token that produces the shortest bucket.
type Histogram struct {
	// counts maps the short hashes of tokens to the number of their
	// occurrences.
	counts map[uint32]int

	// total is the number of all token occurrences.
	total int
}

// NewHistogram returns a histogram of the tokens of ruleGroups, which are the
// token groups of every rule.  The tokens that are present in almost every URL
// get the maximum count.
func NewHistogram(ruleGroups [][][]uint64) (h *Histogram) {
	h = &Histogram{
		counts: map[uint32]int{},
	}

	for _, groups := range ruleGroups {
		for _, g := range groups {
			for _, tok := range g {
				h.counts[Short(tok)]++
				h.total++
			}
		}
	}

	for _, s := range badTokens {
		h.Deprioritize(fasthash.String(s))
	}

	return h
}

// Deprioritize sets the count of token to the maximum possible value, so that
// any token that occurs less often is preferred to it.
func (h *Histogram) Deprioritize(token uint64) {
	h.counts[Short(token)] = max(h.total, 1)
}

// Count returns the number of occurrences of the token's bucket key.
func (h *Histogram) Count(token uint64) (n int) {
	return h.counts[Short(token)]
}

// Total returns the number of all token occurrences.
func (h *Histogram) Total() (n int) {
	return h.total
}

// BestToken returns the token of group with the lowest count.  If several
// tokens have the same count, the first one is returned.  An empty group
// results in the fallback token 0.
func (h *Histogram) BestToken(group []uint64) (token uint64) {
	minCount := math.MaxInt
	for _, tok := range group {
		n := h.counts[Short(tok)]
		if n < minCount {
			minCount = n
			token = tok
		}
	}

	return token
}
