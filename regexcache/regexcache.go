// Package regexcache contains a cache of compiled rule patterns for
// [rules.NetworkRule.Match].
package regexcache

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/urlindex/rules"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config is the configuration structure for a [Cache].
type Config struct {
	// Count is the maximum number of compiled patterns kept in the cache.  It
	// must be positive.
	Count int
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return validate.Positive("Count", c.Count)
}

// key is the cache key.  The same pattern compiles differently under different
// pattern options.
type key struct {
	pattern string
	opts    rules.Mask
}

// entry is the result of a pattern compilation.  Failures are cached too, so
// that an invalid pattern isn't compiled on every request.
type entry struct {
	re  *regexp.Regexp
	err error
}

// Cache is an LRU cache of compiled rule patterns.  It is safe for concurrent
// use.
type Cache struct {
	lru *lru.Cache[key, entry]
}

// type check
var _ rules.RegexCache = (*Cache)(nil)

// New returns a new cache.  c must be valid.
func New(c *Config) (cache *Cache, err error) {
	l, err := lru.New[key, entry](c.Count)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}

	return &Cache{
		lru: l,
	}, nil
}

// Regexp implements the [rules.RegexCache] interface for *Cache.
func (c *Cache) Regexp(pattern string, m rules.Mask) (re *regexp.Regexp, err error) {
	k := key{
		pattern: pattern,
		opts:    m.PatternOptions(),
	}

	if e, ok := c.lru.Get(k); ok {
		return e.re, e.err
	}

	// pattern may reference the memory of an index buffer.
	k.pattern = strings.Clone(pattern)

	re, err = rules.CompilePattern(k.pattern, k.opts)
	c.lru.Add(k, entry{re: re, err: err})

	return re, err
}

// Len returns the number of cached patterns.
func (c *Cache) Len() (n int) {
	return c.lru.Len()
}
