package filterlist

import (
	"bytes"
	"encoding/binary"
	"slices"

	"github.com/AdguardTeam/urlindex/rules"
	"github.com/cespare/xxhash/v2"
)

// domainTable is the interning table of domain sets.  Each distinct set is
// stored once and referenced by its position.
type domainTable struct {
	// positions maps the content hashes of the sets to their positions.
	// Several positions under one hash are the result of hash collisions.
	positions map[uint64][]uint32

	// sets are the interned sets by position.
	sets []rules.DomainSet

	// hashNum is the total number of domain hashes in sets.
	hashNum int
}

// newDomainTable returns a new empty *domainTable.
func newDomainTable() (t *domainTable) {
	return &domainTable{
		positions: map[uint64][]uint32{},
	}
}

// intern returns the position of s in the table, adding it if necessary.  An
// empty set has no position, and noDomains is returned for it.
func (t *domainTable) intern(s rules.DomainSet) (pos uint32) {
	s = normalizeDomainSet(s)
	if len(s) == 0 {
		return noDomains
	}

	h := xxhash.Sum64(s)
	for _, p := range t.positions[h] {
		if bytes.Equal(t.sets[p], s) {
			return p
		}
	}

	pos = uint32(len(t.sets))
	t.positions[h] = append(t.positions[h], pos)
	t.sets = append(t.sets, s)
	t.hashNum += s.Len()

	return pos
}

// len returns the number of interned sets.
func (t *domainTable) len() (n int) {
	return len(t.sets)
}

// encode returns the hashes and domain sets sections.
func (t *domainTable) encode() (hashes, sets []byte) {
	hashes = make([]byte, 0, t.hashNum*hashSize)
	sets = make([]byte, 0, len(t.sets)*domainSetSize)

	for _, s := range t.sets {
		start := uint32(len(hashes) / hashSize)
		hashes = append(hashes, s...)

		sets = binary.LittleEndian.AppendUint32(sets, start)
		sets = binary.LittleEndian.AppendUint32(sets, uint32(s.Len()))
	}

	return hashes, sets
}

// normalizeDomainSet returns s if it's a properly encoded set.  Otherwise, it
// returns a copy of s with the hashes sorted and deduplicated and a trailing
// partial hash, if any, dropped.
func normalizeDomainSet(s rules.DomainSet) (res rules.DomainSet) {
	if s.Validate() == nil {
		return s
	}

	hashes := make([]uint64, 0, s.Len())
	for i := range s.Len() {
		hashes = append(hashes, s.At(i))
	}

	slices.Sort(hashes)
	hashes = slices.Compact(hashes)

	res = make(rules.DomainSet, 0, len(hashes)*hashSize)
	for _, h := range hashes {
		res = binary.LittleEndian.AppendUint64(res, h)
	}

	return res
}
