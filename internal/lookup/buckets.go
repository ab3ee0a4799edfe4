package lookup

import (
	"iter"
	"maps"
	"slices"
)

// Buckets is a mapping of bucket keys to rule indexes.  The indexes within a
// bucket are kept sorted and unique.
type Buckets struct {
	m map[uint32][]uint32
}

// NewBuckets returns a new empty *Buckets.
func NewBuckets() (b *Buckets) {
	return &Buckets{
		m: map[uint32][]uint32{},
	}
}

// Insert adds the rule index to the bucket of token.  Inserting the same pair
// twice is a no-op.
func (b *Buckets) Insert(token uint64, ruleIdx uint32) {
	key := Short(token)
	bucket := b.m[key]

	i, found := slices.BinarySearch(bucket, ruleIdx)
	if found {
		return
	}

	b.m[key] = slices.Insert(bucket, i, ruleIdx)
}

// Bucket returns the rule indexes in the bucket with the key.  The result must
// not be modified.
func (b *Buckets) Bucket(key uint32) (ruleIdxs []uint32) {
	return b.m[key]
}

// Len returns the number of non-empty buckets.
func (b *Buckets) Len() (n int) {
	return len(b.m)
}

// Entries returns the total number of rule indexes in all buckets.
func (b *Buckets) Entries() (n int) {
	for _, bucket := range b.m {
		n += len(bucket)
	}

	return n
}

// All returns an iterator over the buckets in ascending order of keys.
func (b *Buckets) All() (seq iter.Seq2[uint32, []uint32]) {
	return func(yield func(key uint32, ruleIdxs []uint32) bool) {
		for _, key := range slices.Sorted(maps.Keys(b.m)) {
			if !yield(key, b.m[key]) {
				return
			}
		}
	}
}
