// Package filterlist contains the zero-copy storage of a compiled rule index:
// the builder that encodes rules and buckets into a single buffer and the
// reader that verifies such a buffer and decodes rules from it in place.
package filterlist

import "math"

// Binary layout.  All integers are little-endian, all sections start at
// offsets aligned to 8 bytes, and all references are offsets or indexes, so
// the buffer can be used as is after reading it from a file or a shared
// memory segment.
//
//	header (64 bytes):
//	  magic    [4]byte = "UFIX"
//	  version  uint32
//	  sections [7]struct{ offset, count uint32 }
//	hashes:   count × uint64, domain hashes of all interned domain sets
//	domsets:  count × {start, len uint32}, ranges in hashes
//	buckets:  count × {key, start, len uint32}, keys strictly ascending
//	entries:  count × uint32, rule indexes
//	rules:    count × rule record, see ruleRecordSize
//	patterns: count × {offset, len uint32}, ranges in strings
//	strings:  count bytes
const (
	magic             = "UFIX"
	version    uint32 = 1
	headerSize        = 64

	// sectionAlign is the alignment of section offsets.
	sectionAlign = 8
)

// section is the index of a section in the header.
type section int

// Sections in the order of their placement in the buffer.
const (
	sectionHashes section = iota
	sectionDomainSets
	sectionBuckets
	sectionEntries
	sectionRules
	sectionPatterns
	sectionStrings

	sectionNum
)

// sectionNames are used in error messages.
var sectionNames = [sectionNum]string{
	sectionHashes:     "hashes",
	sectionDomainSets: "domain sets",
	sectionBuckets:    "buckets",
	sectionEntries:    "entries",
	sectionRules:      "rules",
	sectionPatterns:   "patterns",
	sectionStrings:    "strings",
}

// String implements the [fmt.Stringer] interface for section.
func (s section) String() (str string) {
	return sectionNames[s]
}

// Sizes of section elements.
const (
	hashSize      = 8
	domainSetSize = 8
	bucketSize    = 12
	entrySize     = 4
	strRefSize    = 8
)

// Rule record.  A string reference is an offset and a length in the strings
// section.
//
//	mask        uint32
//	permitted   uint32, domain set index or noDomains
//	restricted  uint32, domain set index or noDomains
//	patterns    {start, len uint32}, range in the patterns section
//	hostname    string reference
//	tag         string reference
//	modifier    string reference
//	text        string reference
const (
	ruleOffMask       = 0
	ruleOffPermitted  = 4
	ruleOffRestricted = 8
	ruleOffPatStart   = 12
	ruleOffPatLen     = 16
	ruleOffHostname   = 20
	ruleOffTag        = 28
	ruleOffModifier   = 36
	ruleOffText       = 44

	ruleRecordSize = 52
)

// sectionElemSizes are the sizes of the elements of each section.
var sectionElemSizes = [sectionNum]uint64{
	sectionHashes:     hashSize,
	sectionDomainSets: domainSetSize,
	sectionBuckets:    bucketSize,
	sectionEntries:    entrySize,
	sectionRules:      ruleRecordSize,
	sectionPatterns:   strRefSize,
	sectionStrings:    1,
}

// noDomains is the domain set index of a rule without a domain set.
const noDomains uint32 = math.MaxUint32

// maxBufferSize is the maximum size of the buffer addressable with 32-bit
// offsets.
const maxBufferSize = math.MaxUint32

// alignUp returns n rounded up to a multiple of sectionAlign.
func alignUp(n uint64) (aligned uint64) {
	return (n + sectionAlign - 1) &^ (sectionAlign - 1)
}
