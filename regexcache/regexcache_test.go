package regexcache_test

import (
	"sync"
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/urlindex/regexcache"
	"github.com/AdguardTeam/urlindex/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache is a helper that returns a new cache with count entries.
func newTestCache(tb testing.TB, count int) (c *regexcache.Cache) {
	tb.Helper()

	c, err := regexcache.New(&regexcache.Config{
		Count: count,
	})
	require.NoError(tb, err)

	return c
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	var conf *regexcache.Config
	assert.ErrorIs(t, conf.Validate(), errors.ErrNoValue)

	assert.NoError(t, (&regexcache.Config{Count: 1}).Validate())
	assert.Error(t, (&regexcache.Config{Count: 0}).Validate())
}

func TestCache_Regexp(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 2)

	re, err := c.Regexp("/ads/*/banner", 0)
	require.NoError(t, err)
	assert.True(t, re.MatchString("http://example.org/ads/x/banner"))

	again, err := c.Regexp("/ads/*/banner", rules.OptionException)
	require.NoError(t, err)

	// Options that don't affect patterns don't make another entry.
	assert.Same(t, re, again)
	assert.Equal(t, 1, c.Len())

	caseRe, err := c.Regexp("/ads/*/banner", rules.OptionMatchCase)
	require.NoError(t, err)
	assert.NotSame(t, re, caseRe)
	assert.Equal(t, 2, c.Len())

	_, err = c.Regexp("/x*/", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestCache_Regexp_error(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 10)

	_, err := c.Regexp(`banner(\d+`, rules.OptionRegex)
	testutil.AssertErrorMsg(t, "error parsing regexp: missing closing ): `(?i)banner(\\d+`", err)

	_, errAgain := c.Regexp(`banner(\d+`, rules.OptionRegex)
	assert.Same(t, err, errAgain)
}

func TestCache_Regexp_concurrent(t *testing.T) {
	t.Parallel()

	const goroutines = 8

	c := newTestCache(t, 4)

	wg := &sync.WaitGroup{}
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()

			pattern := []string{"/a*/", "/b*/", "/c*/"}[i%3]
			for range 100 {
				re, err := c.Regexp(pattern, 0)
				assert.NoError(t, err)
				assert.NotNil(t, re)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 3, c.Len())
}
