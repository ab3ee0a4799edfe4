// Package fasthash contains utilities for fast hashing of rule and request
// tokens.
package fasthash

// seed is the initial djb2 hash value.
const seed uint64 = 5381

// String implements the djb2 hash algorithm for a string.  The empty string
// hashes to zero, which is the fallback token.
func String(str string) (hash uint64) {
	if str == "" {
		return 0
	}

	return Between(str, 0, len(str))
}

// Between implements the djb2 hash algorithm for str[begin:end].  begin and
// end must be valid indexes into str.
func Between(str string, begin, end int) (hash uint64) {
	hash = seed
	for i := begin; i < end; i++ {
		hash = Add(hash, str[i])
	}

	return hash
}

// Add mixes c into a djb2 hash.  Start with [Seed] to hash incrementally.
func Add(hash uint64, c byte) (res uint64) {
	return (hash * 33) ^ uint64(c)
}

// Seed returns the initial value for an incremental hash built with [Add].
func Seed() (hash uint64) {
	return seed
}

// Short returns the 32-bit short hash used as the index key.  Collisions are
// expected and must be resolved by re-checking the rule.
func Short(hash uint64) (short uint32) {
	return uint32(hash)
}
