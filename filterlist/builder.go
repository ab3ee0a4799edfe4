package filterlist

import (
	"encoding/binary"

	"github.com/AdguardTeam/urlindex/internal/lookup"
	"github.com/AdguardTeam/urlindex/rules"
)

// strRef is a reference to a string in the strings section.
type strRef struct {
	off uint32
	len uint32
}

// Builder encodes rules and their bucket assignment into a [RuleStorage].  A
// Builder is not safe for concurrent use.
type Builder struct {
	domains *domainTable
	buckets *lookup.Buckets

	// strs is used to store every distinct string once.
	strs map[string]strRef

	rules    []byte
	patterns []byte
	strings  []byte

	ruleNum int

	// tooLarge is set when the strings don't fit into the 32-bit offset
	// space.
	tooLarge bool
}

// NewBuilder returns a new empty *Builder.
func NewBuilder() (b *Builder) {
	return &Builder{
		domains: newDomainTable(),
		buckets: lookup.NewBuckets(),
		strs:    map[string]strRef{},
	}
}

// AddRule encodes f and returns its index in the storage.  The rule isn't
// reachable from any bucket until it's added to one with [Builder.Index].
func (b *Builder) AddRule(f *rules.NetworkRule) (idx uint32) {
	idx = uint32(b.ruleNum)
	b.ruleNum++

	patStart := uint32(len(b.patterns) / strRefSize)
	for _, p := range f.Patterns {
		b.patterns = appendStrRef(b.patterns, b.addString(p))
	}

	rec := b.rules
	rec = binary.LittleEndian.AppendUint32(rec, uint32(f.Mask))
	rec = binary.LittleEndian.AppendUint32(rec, b.domains.intern(f.PermittedDomains))
	rec = binary.LittleEndian.AppendUint32(rec, b.domains.intern(f.RestrictedDomains))
	rec = binary.LittleEndian.AppendUint32(rec, patStart)
	rec = binary.LittleEndian.AppendUint32(rec, uint32(len(f.Patterns)))
	rec = appendStrRef(rec, b.addString(f.Hostname))
	rec = appendStrRef(rec, b.addString(f.Tag))
	rec = appendStrRef(rec, b.addString(f.Modifier))
	rec = appendStrRef(rec, b.addString(f.RuleText))
	b.rules = rec

	return idx
}

// Index adds the rule with index idx to the bucket of token.  Adding the same
// pair twice is a no-op.
func (b *Builder) Index(token uint64, idx uint32) {
	b.buckets.Insert(token, idx)
}

// RulesCount returns the number of rules added so far.
func (b *Builder) RulesCount() (n int) {
	return b.ruleNum
}

// Finish encodes the index into a new buffer and returns the storage reading
// it.  err is [ErrTooLarge] if the index doesn't fit into the 32-bit offset
// space.  b must not be used after calling Finish.
func (b *Builder) Finish() (s *RuleStorage, err error) {
	if b.tooLarge {
		return nil, ErrTooLarge
	}

	hashes, domsets := b.domains.encode()
	buckets, entries := b.encodeBuckets()

	var secs [sectionNum][]byte
	secs[sectionHashes] = hashes
	secs[sectionDomainSets] = domsets
	secs[sectionBuckets] = buckets
	secs[sectionEntries] = entries
	secs[sectionRules] = b.rules
	secs[sectionPatterns] = b.patterns
	secs[sectionStrings] = b.strings

	var offsets [sectionNum]uint64
	end := uint64(headerSize)
	for i, sec := range secs {
		offsets[i] = alignUp(end)
		end = offsets[i] + uint64(len(sec))
	}

	if end > maxBufferSize {
		return nil, ErrTooLarge
	}

	buf := make([]byte, end)
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[4:], version)
	for i, sec := range secs {
		hdr := buf[8+i*8:]
		binary.LittleEndian.PutUint32(hdr, uint32(offsets[i]))
		binary.LittleEndian.PutUint32(hdr[4:], uint32(uint64(len(sec))/sectionElemSizes[i]))

		copy(buf[offsets[i]:], sec)
	}

	return newRuleStorage(buf, b.domains.len(), b.buckets.Len(), b.ruleNum), nil
}

// encodeBuckets returns the buckets and entries sections.
func (b *Builder) encodeBuckets() (buckets, entries []byte) {
	buckets = make([]byte, 0, b.buckets.Len()*bucketSize)
	entries = make([]byte, 0, b.buckets.Entries()*entrySize)

	for key, idxs := range b.buckets.All() {
		buckets = binary.LittleEndian.AppendUint32(buckets, key)
		buckets = binary.LittleEndian.AppendUint32(buckets, uint32(len(entries)/entrySize))
		buckets = binary.LittleEndian.AppendUint32(buckets, uint32(len(idxs)))

		for _, idx := range idxs {
			entries = binary.LittleEndian.AppendUint32(entries, idx)
		}
	}

	return buckets, entries
}

// addString stores str in the strings section, unless it's already there, and
// returns the reference to it.
func (b *Builder) addString(str string) (ref strRef) {
	if str == "" {
		return strRef{}
	}

	ref, ok := b.strs[str]
	if ok {
		return ref
	}

	if uint64(len(b.strings))+uint64(len(str)) > maxBufferSize {
		b.tooLarge = true

		return strRef{}
	}

	ref = strRef{
		off: uint32(len(b.strings)),
		len: uint32(len(str)),
	}
	b.strings = append(b.strings, str...)
	b.strs[str] = ref

	return ref
}

// appendStrRef appends the encoded ref to b.
func appendStrRef(b []byte, ref strRef) (res []byte) {
	b = binary.LittleEndian.AppendUint32(b, ref.off)

	return binary.LittleEndian.AppendUint32(b, ref.len)
}
