// Package lookup implements the structures used to assign rules to index
// buckets: the token frequency histogram and the bucket table.
package lookup

import "github.com/AdguardTeam/urlindex/internal/fasthash"

// badTokens are the tokens that are present in almost every URL.  They are
// always deprioritized, since a bucket keyed by one of them would be checked
// for nearly every request.
var badTokens = []string{
	"http",
	"https",
	"www",
	"com",
}

// Short returns the bucket key of the token.
func Short(token uint64) (key uint32) {
	return fasthash.Short(token)
}
