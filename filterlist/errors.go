package filterlist

import "github.com/AdguardTeam/golibs/errors"

const (
	// ErrMalformed is returned by [FromRaw] when the buffer is not a valid
	// serialized index: it is truncated, misaligned, or contains offsets or
	// indexes out of range.  The buffer must be discarded and the index must
	// be rebuilt from the rules.
	ErrMalformed errors.Error = "malformed index"

	// ErrDomainIndex is returned by [FromRaw] when a rule references a domain
	// set that isn't in the domain set table.  Errors with ErrDomainIndex
	// always also match [ErrMalformed].
	ErrDomainIndex errors.Error = "domain set index out of range"

	// ErrTooLarge is returned by [Builder.Finish] when the encoded index
	// doesn't fit into the 32-bit offset space.
	ErrTooLarge errors.Error = "index too large"
)
