package formula

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of compiled programs kept per Evaluator.
const DefaultCacheSize = 1024

// programCache is a thread-safe LRU of compiled formulas keyed by source.
type programCache struct {
	lru       *lru.Cache[string, *program]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func newProgramCache(maxSize int) *programCache {
	if maxSize < 1 {
		maxSize = DefaultCacheSize
	}
	c := &programCache{}
	l, err := lru.NewWithEvict(maxSize, func(string, *program) { c.evictions.Add(1) })
	if err != nil {
		// Only a non-positive size fails, and maxSize >= 1 here.
		panic("formula: " + err.Error())
	}
	c.lru = l
	return c
}

func (c *programCache) get(formula string) (*program, bool) {
	p, ok := c.lru.Get(formula)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return p, true
}

func (c *programCache) put(p *program) {
	c.lru.Add(p.formula, p)
}

// CacheStats reports the compiled-program cache size and counters.
type CacheStats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *programCache) stats() CacheStats {
	return CacheStats{
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
