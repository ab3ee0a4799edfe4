package rules

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/urlindex/internal/fasthash"
)

// errNotSorted is returned when the hashes of a domain set are not sorted or
// not unique.
const errNotSorted errors.Error = "not sorted"

// DomainHashSize is the size of a single encoded hash in a [DomainSet].
const DomainHashSize = 8

// DomainSet is a set of domain name hashes.  The hashes are sorted, unique,
// and encoded as little-endian uint64 values, so that a set stored inside of
// a serialized index can be used in place.  A nil DomainSet is an empty set.
type DomainSet []byte

// NewDomainSet returns a set of hashes of domains.  The domains are
// lower-cased before hashing.
func NewDomainSet(domains ...string) (s DomainSet) {
	if len(domains) == 0 {
		return nil
	}

	hashes := make([]uint64, 0, len(domains))
	for _, d := range domains {
		hashes = append(hashes, fasthash.String(strings.ToLower(d)))
	}

	slices.Sort(hashes)
	hashes = slices.Compact(hashes)

	s = make(DomainSet, len(hashes)*DomainHashSize)
	for i, h := range hashes {
		binary.LittleEndian.PutUint64(s[i*DomainHashSize:], h)
	}

	return s
}

// Len returns the number of hashes in s.
func (s DomainSet) Len() (n int) {
	return len(s) / DomainHashSize
}

// At returns the i-th hash of s.  i must be in [0, s.Len()).
func (s DomainSet) At(i int) (h uint64) {
	return binary.LittleEndian.Uint64(s[i*DomainHashSize:])
}

// Has returns true if s contains h.
func (s DomainSet) Has(h uint64) (ok bool) {
	lo, hi := 0, s.Len()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		v := s.At(mid)
		switch {
		case v == h:
			return true
		case v < h:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return false
}

// HasAny returns true if s contains any of hashes.
func (s DomainSet) HasAny(hashes []uint64) (ok bool) {
	for _, h := range hashes {
		if s.Has(h) {
			return true
		}
	}

	return false
}

// Validate returns an error if s is not a properly encoded set.
func (s DomainSet) Validate() (err error) {
	if len(s)%DomainHashSize != 0 {
		return fmt.Errorf("domain set length %d: not a multiple of %d", len(s), DomainHashSize)
	}

	for i := 1; i < s.Len(); i++ {
		if s.At(i-1) >= s.At(i) {
			return fmt.Errorf("domain set hash at index %d: %w", i, errNotSorted)
		}
	}

	return nil
}
