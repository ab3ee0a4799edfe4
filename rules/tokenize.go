package rules

import "github.com/AdguardTeam/urlindex/internal/fasthash"

// maxTokens is the maximum number of tokens a rule is indexed by.  Requests
// aren't limited, since the length of the request URL is.
const maxTokens = 128

// tokenizeOpts are the options of [appendTokens].
type tokenizeOpts struct {
	// pattern means that the string is a rule pattern, so runs next to the
	// '*' wildcard are not complete tokens.
	pattern bool

	// skipFirst drops a run that starts at the beginning of the string.
	skipFirst bool

	// skipLast drops a run that ends at the end of the string.
	skipLast bool

	// all means that every token of the string is taken, not only the first
	// maxTokens ones.
	all bool
}

// isTokenChar returns true if c can be a part of a token.
func isTokenChar(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '%'
}

// toLower returns the lower-case version of an ASCII letter c.
func toLower(c byte) (l byte) {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}

	return c
}

// appendTokens appends the hashes of the tokens of s to tokens and returns the
// result.  A token is a run of at least two token characters.  Tokens are
// hashed case-insensitively, and the hash of a token is the same as
// [fasthash.String] of its lower-case form.  This is the only tokenizer, both
// the rules and the requests use it.
func appendTokens(tokens []uint64, s string, opts tokenizeOpts) (res []uint64) {
	hash := fasthash.Seed()
	start := -1

	// before is the character preceding the current run.
	var before byte
	for i := 0; i < len(s) && (opts.all || len(tokens) < maxTokens); i++ {
		c := s[i]
		if isTokenChar(c) {
			if start < 0 {
				start = i
				hash = fasthash.Seed()
			}

			hash = fasthash.Add(hash, toLower(c))

			continue
		}

		if start >= 0 && i-start > 1 && isCompleteToken(opts, start, before, c) {
			tokens = append(tokens, hash)
		}

		start = -1
		before = c
	}

	if start >= 0 &&
		len(s)-start > 1 &&
		(opts.all || len(tokens) < maxTokens) &&
		!opts.skipLast &&
		isCompleteToken(opts, start, before, 0) {
		tokens = append(tokens, hash)
	}

	return tokens
}

// isCompleteToken returns true if the run starting at start, preceded by
// before and followed by after, can be used as a token.
func isCompleteToken(opts tokenizeOpts, start int, before, after byte) (ok bool) {
	if opts.skipFirst && start == 0 {
		return false
	}

	return !opts.pattern || (before != '*' && after != '*')
}
