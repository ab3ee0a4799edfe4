package filterlist

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/urlindex/rules"
)

// RuleStorage is a read-only view of a serialized index.  Rules are addressed
// by their index and decoded in place only when they are needed, so a
// RuleStorage doesn't allocate when it's read.  It is safe for concurrent use.
//
// The strings and domain sets of decoded rules reference the underlying
// buffer, so the buffer must not be modified while the storage or any rule
// decoded from it is in use.
type RuleStorage struct {
	buf []byte

	// secs are the views of the sections of buf.
	secs [sectionNum][]byte

	domainSetNum int
	bucketNum    int
	ruleNum      int
}

// newRuleStorage returns a storage for a buffer that is known to be valid.
func newRuleStorage(buf []byte, domainSetNum, bucketNum, ruleNum int) (s *RuleStorage) {
	s = &RuleStorage{
		buf:          buf,
		domainSetNum: domainSetNum,
		bucketNum:    bucketNum,
		ruleNum:      ruleNum,
	}

	for i := range sectionNum {
		off, cnt := s.header(i)
		s.secs[i] = buf[off : off+cnt*sectionElemSizes[i]]
	}

	return s
}

// FromRaw returns a storage reading buf, which must be a buffer previously
// produced by [Builder.Finish] and returned by [RuleStorage.Bytes].  FromRaw
// only verifies the structure of buf, the content of the rules is trusted.
// Any error returned by FromRaw matches [ErrMalformed].
//
// buf is used in place and must not be modified afterwards.
func FromRaw(buf []byte) (s *RuleStorage, err error) {
	err = verifyHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	s = &RuleStorage{
		buf: buf,
	}

	for i := range sectionNum {
		off, cnt := s.header(i)
		s.secs[i] = buf[off : off+cnt*sectionElemSizes[i]]
	}

	s.domainSetNum = len(s.secs[sectionDomainSets]) / domainSetSize
	s.bucketNum = len(s.secs[sectionBuckets]) / bucketSize
	s.ruleNum = len(s.secs[sectionRules]) / ruleRecordSize

	err = errors.Join(
		s.verifyDomainSets(),
		s.verifyBuckets(),
		s.verifyPatterns(),
		s.verifyRules(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return s, nil
}

// header returns the offset and element count of the section.  The header
// must be verified.
func (s *RuleStorage) header(sec section) (off, cnt uint64) {
	hdr := s.buf[8+int(sec)*8:]

	return uint64(binary.LittleEndian.Uint32(hdr)), uint64(binary.LittleEndian.Uint32(hdr[4:]))
}

// verifyHeader returns an error if the header of buf is invalid or the
// sections it describes don't fit into buf.
func verifyHeader(buf []byte) (err error) {
	if len(buf) < headerSize {
		return fmt.Errorf("header: buffer length %d is less than %d", len(buf), headerSize)
	}

	if m := string(buf[:len(magic)]); m != magic {
		return fmt.Errorf("header: bad magic %q", m)
	}

	if v := binary.LittleEndian.Uint32(buf[4:]); v != version {
		return fmt.Errorf("header: unsupported version %d", v)
	}

	end := uint64(headerSize)
	for i := range sectionNum {
		hdr := buf[8+int(i)*8:]
		off := uint64(binary.LittleEndian.Uint32(hdr))
		cnt := uint64(binary.LittleEndian.Uint32(hdr[4:]))

		switch {
		case off%sectionAlign != 0:
			return fmt.Errorf("section %s: offset %d is not aligned", i, off)
		case off < end:
			return fmt.Errorf("section %s: offset %d overlaps previous data", i, off)
		}

		end = off + cnt*sectionElemSizes[i]
		if end > uint64(len(buf)) {
			return fmt.Errorf("section %s: end %d is out of buffer of length %d", i, end, len(buf))
		}
	}

	if end != uint64(len(buf)) {
		return fmt.Errorf("trailing data: %d bytes", uint64(len(buf))-end)
	}

	return nil
}

// verifyDomainSets returns an error if a domain set references hashes out of
// range or isn't sorted.
func (s *RuleStorage) verifyDomainSets() (err error) {
	hashNum := uint64(len(s.secs[sectionHashes]) / hashSize)
	for i := range s.domainSetNum {
		start, n := s.domainSetRange(uint32(i))
		if start+n > hashNum {
			return fmt.Errorf("domain set at index %d: range [%d, %d) is out of %d hashes", i, start, start+n, hashNum)
		}

		if n == 0 {
			return fmt.Errorf("domain set at index %d: empty", i)
		}

		err = s.domainSet(uint32(i)).Validate()
		if err != nil {
			return fmt.Errorf("domain set at index %d: %w", i, err)
		}
	}

	return nil
}

// verifyBuckets returns an error if the bucket keys aren't strictly
// ascending or the buckets reference entries or rules out of range.
func (s *RuleStorage) verifyBuckets() (err error) {
	entries := s.secs[sectionEntries]
	entryNum := uint64(len(entries) / entrySize)
	for i := range entryNum {
		if idx := binary.LittleEndian.Uint32(entries[i*entrySize:]); uint64(idx) >= uint64(s.ruleNum) {
			return fmt.Errorf("entry at index %d: rule index %d is out of %d rules", i, idx, s.ruleNum)
		}
	}

	buckets := s.secs[sectionBuckets]
	var prev uint32
	for i := range s.bucketNum {
		b := buckets[i*bucketSize:]
		key := binary.LittleEndian.Uint32(b)
		start := uint64(binary.LittleEndian.Uint32(b[4:]))
		n := uint64(binary.LittleEndian.Uint32(b[8:]))

		if i > 0 && key <= prev {
			return fmt.Errorf("bucket at index %d: key %d is not greater than %d", i, key, prev)
		}

		if start+n > entryNum {
			return fmt.Errorf("bucket at index %d: range [%d, %d) is out of %d entries", i, start, start+n, entryNum)
		}

		prev = key
	}

	return nil
}

// verifyPatterns returns an error if a pattern references strings out of
// range.
func (s *RuleStorage) verifyPatterns() (err error) {
	pats := s.secs[sectionPatterns]
	for i := range len(pats) / strRefSize {
		err = s.verifyStrRef(pats[i*strRefSize:])
		if err != nil {
			return fmt.Errorf("pattern at index %d: %w", i, err)
		}
	}

	return nil
}

// verifyRules returns an error if a rule references patterns, strings, or
// domain sets out of range.
func (s *RuleStorage) verifyRules() (err error) {
	patNum := uint64(len(s.secs[sectionPatterns]) / strRefSize)
	for i := range s.ruleNum {
		rec := s.rule(uint32(i))

		start := uint64(binary.LittleEndian.Uint32(rec[ruleOffPatStart:]))
		n := uint64(binary.LittleEndian.Uint32(rec[ruleOffPatLen:]))
		if start+n > patNum {
			return fmt.Errorf("rule at index %d: patterns range [%d, %d) is out of %d", i, start, start+n, patNum)
		}

		for _, off := range []int{ruleOffHostname, ruleOffTag, ruleOffModifier, ruleOffText} {
			err = s.verifyStrRef(rec[off:])
			if err != nil {
				return fmt.Errorf("rule at index %d: %w", i, err)
			}
		}

		err = s.verifyDomainIndex(binary.LittleEndian.Uint32(rec[ruleOffPermitted:]))
		if err != nil {
			return fmt.Errorf("rule at index %d: permitted domains: %w", i, err)
		}

		err = s.verifyDomainIndex(binary.LittleEndian.Uint32(rec[ruleOffRestricted:]))
		if err != nil {
			return fmt.Errorf("rule at index %d: restricted domains: %w", i, err)
		}
	}

	return nil
}

// verifyStrRef returns an error if the string reference encoded at the start
// of b is out of range.
func (s *RuleStorage) verifyStrRef(b []byte) (err error) {
	off := uint64(binary.LittleEndian.Uint32(b))
	n := uint64(binary.LittleEndian.Uint32(b[4:]))
	if strNum := uint64(len(s.secs[sectionStrings])); off+n > strNum {
		return fmt.Errorf("string range [%d, %d) is out of %d bytes", off, off+n, strNum)
	}

	return nil
}

// verifyDomainIndex returns an error if idx doesn't reference an existing
// domain set.
func (s *RuleStorage) verifyDomainIndex(idx uint32) (err error) {
	if idx != noDomains && uint64(idx) >= uint64(s.domainSetNum) {
		return fmt.Errorf("%w: %d of %d", ErrDomainIndex, idx, s.domainSetNum)
	}

	return nil
}

// Bytes returns the serialized index.  The result must not be modified.
func (s *RuleStorage) Bytes() (b []byte) {
	return s.buf
}

// RulesCount returns the number of rules in the storage.
func (s *RuleStorage) RulesCount() (n int) {
	return s.ruleNum
}

// BucketsCount returns the number of non-empty buckets.  A storage without
// buckets matches nothing.
func (s *RuleStorage) BucketsCount() (n int) {
	return s.bucketNum
}

// DomainSetsCount returns the number of distinct domain sets.
func (s *RuleStorage) DomainSetsCount() (n int) {
	return s.domainSetNum
}

// Bucket is a view of the rule indexes in a bucket.
type Bucket []byte

// Len returns the number of rule indexes in b.
func (b Bucket) Len() (n int) {
	return len(b) / entrySize
}

// At returns the i-th rule index of b.
func (b Bucket) At(i int) (idx uint32) {
	return binary.LittleEndian.Uint32(b[i*entrySize:])
}

// Bucket returns the bucket with the key.  The result is empty if there is no
// such bucket.
func (s *RuleStorage) Bucket(key uint32) (b Bucket) {
	buckets := s.secs[sectionBuckets]

	lo, hi := 0, s.bucketNum
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		rec := buckets[mid*bucketSize:]
		switch k := binary.LittleEndian.Uint32(rec); {
		case k == key:
			start := binary.LittleEndian.Uint32(rec[4:]) * entrySize
			n := binary.LittleEndian.Uint32(rec[8:]) * entrySize

			return Bucket(s.secs[sectionEntries][start : start+n])
		case k < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return nil
}

// RetrieveNetworkRule decodes the rule with index idx into f.  The patterns of
// f are reused, so that a rule decoded into the same f doesn't allocate.  idx
// must be less than [RuleStorage.RulesCount].
func (s *RuleStorage) RetrieveNetworkRule(idx uint32, f *rules.NetworkRule) {
	rec := s.rule(idx)

	f.Mask = rules.Mask(binary.LittleEndian.Uint32(rec[ruleOffMask:]))
	f.PermittedDomains = s.domainSet(binary.LittleEndian.Uint32(rec[ruleOffPermitted:]))
	f.RestrictedDomains = s.domainSet(binary.LittleEndian.Uint32(rec[ruleOffRestricted:]))
	f.Hostname = s.str(rec[ruleOffHostname:])
	f.Tag = s.str(rec[ruleOffTag:])
	f.Modifier = s.str(rec[ruleOffModifier:])
	f.RuleText = s.str(rec[ruleOffText:])

	start := binary.LittleEndian.Uint32(rec[ruleOffPatStart:])
	n := binary.LittleEndian.Uint32(rec[ruleOffPatLen:])

	f.Patterns = f.Patterns[:0]
	pats := s.secs[sectionPatterns]
	for i := start; i < start+n; i++ {
		f.Patterns = append(f.Patterns, s.str(pats[i*strRefSize:]))
	}
}

// rule returns the record of the rule with index idx.
func (s *RuleStorage) rule(idx uint32) (rec []byte) {
	off := int(idx) * ruleRecordSize

	return s.secs[sectionRules][off : off+ruleRecordSize]
}

// domainSetRange returns the range of the domain set in the hashes section.
func (s *RuleStorage) domainSetRange(idx uint32) (start, n uint64) {
	rec := s.secs[sectionDomainSets][int(idx)*domainSetSize:]

	return uint64(binary.LittleEndian.Uint32(rec)), uint64(binary.LittleEndian.Uint32(rec[4:]))
}

// domainSet returns the view of the domain set with index idx.
func (s *RuleStorage) domainSet(idx uint32) (ds rules.DomainSet) {
	if idx == noDomains {
		return nil
	}

	start, n := s.domainSetRange(idx)

	return rules.DomainSet(s.secs[sectionHashes][start*hashSize : (start+n)*hashSize])
}

// str returns the string referenced by the string reference at the start of b.
// The string shares memory with the buffer.
func (s *RuleStorage) str(b []byte) (str string) {
	off := binary.LittleEndian.Uint32(b)
	n := binary.LittleEndian.Uint32(b[4:])
	if n == 0 {
		return ""
	}

	return unsafe.String(&s.secs[sectionStrings][off], int(n))
}
