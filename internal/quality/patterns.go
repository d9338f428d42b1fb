package quality

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrInvalidPattern is returned when a Matches rule carries a pattern that does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// patternCache memoizes compiled Matches operands. Rule lists differ per call and
// engines are shared between requests, so access is synchronized.
type patternCache struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{patterns: make(map[string]*regexp.Regexp)}
}

// get returns the compiled pattern, compiling and caching it on first use.
func (c *patternCache) get(expr string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.patterns[expr]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, expr, err)
	}

	c.mu.Lock()
	c.patterns[expr] = re
	c.mu.Unlock()
	return re, nil
}

// len returns the number of cached patterns.
func (c *patternCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}
