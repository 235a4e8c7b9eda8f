package semver

import "sync"

// RangeCache compiles and memoizes Range expressions, mirroring the
// original's PackageInstallingContext::versionRangeCaches_ /
// getRange(expr): most manifests repeat the same range string across
// many edges (e.g. "^1.0.0" for a common peer dependency), so compiling
// once per distinct string avoids redundant lexing/parsing under
// concurrent resolution.
type RangeCache struct {
	mu    sync.Mutex
	byKey map[string]*Range
}

// NewRangeCache returns an empty, ready-to-use RangeCache.
func NewRangeCache() *RangeCache {
	return &RangeCache{byKey: make(map[string]*Range)}
}

// Get returns the compiled Range for expr, compiling and caching it on
// first use. Safe for concurrent use.
func (c *RangeCache) Get(expr string) (*Range, error) {
	c.mu.Lock()
	if r, ok := c.byKey[expr]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	r, err := ParseRange(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.byKey[expr]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.byKey[expr] = r
	c.mu.Unlock()
	return r, nil
}
