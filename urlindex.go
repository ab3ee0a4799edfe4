// Package urlindex contains the compiled index of network filtering rules.
// The index is built once from parsed rules or reconstructed from its
// serialized form and is then used read-only, so any number of goroutines may
// query it concurrently.
package urlindex

import (
	"log/slog"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/urlindex/rules"
)

// Optimizer merges rules within a single index bucket.
type Optimizer interface {
	// IsOptimizable returns true if f can be passed to Optimize.  Rules that
	// aren't optimizable are stored as is.
	IsOptimizable(f *rules.NetworkRule) (ok bool)

	// Optimize returns the rules that replace rs in a bucket.  The result must
	// match every request any of rs matches.  It may be empty, in which case
	// the bucket gets no rules.
	Optimize(rs []*rules.NetworkRule) (res []*rules.NetworkRule)
}

// Config is the configuration structure for a [FilterList].
type Config struct {
	// Logger is used to log the building of the index.  It must not be nil.
	Logger *slog.Logger

	// Optimizer merges the rules in the buckets if Optimize is true.  If it's
	// nil, [optimizer.Patterns] is used.
	Optimizer Optimizer

	// Optimize enables merging of rules.
	Optimize bool
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return validate.NotNil("Logger", c.Logger)
}

// CheckResult is the result of a rule match.  It doesn't reference the index,
// so it can be kept after the index is gone.
type CheckResult struct {
	// Modifier is the payload of the $redirect, $csp, or $removeparam
	// modifier of the rule, if any.
	Modifier string

	// RuleText is the text of the rule, if any.
	RuleText string

	// Mask contains the request types and options of the rule.
	Mask rules.Mask
}

// newCheckResult returns the result with the data of f copied out of the index
// buffer.
func newCheckResult(f *rules.NetworkRule) (res *CheckResult) {
	return &CheckResult{
		Modifier: strings.Clone(f.Modifier),
		RuleText: strings.Clone(f.RuleText),
		Mask:     f.Mask,
	}
}

// IsException returns true if the result is of an allowlist rule.
func (res *CheckResult) IsException() (ok bool) {
	return res.Mask.Has(rules.OptionException)
}
