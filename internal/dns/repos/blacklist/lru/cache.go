package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist"
)

// decisionCache is an LRU-backed blacklist.DecisionCache keyed by query name.
// It tracks hits, misses and evictions.
type decisionCache struct {
	lru       *lru.Cache[string, domain.BlockDecision]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache always misses; used when size <= 0.
type disabledCache struct{}

// New creates a DecisionCache holding up to size names. If size <= 0, a
// disabled cache is returned that always misses and tracks no metrics.
func New(size int) (blacklist.DecisionCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}

	dc := &decisionCache{}
	// NewWithEvict observes evictions, including the ones caused by Purge.
	cache, err := lru.NewWithEvict(size, func(_ string, _ domain.BlockDecision) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

func (c *decisionCache) Get(name string) (domain.BlockDecision, bool) {
	if val, ok := c.lru.Get(name); ok {
		c.hits.Add(1)
		return val, true
	}
	c.misses.Add(1)
	return domain.EmptyDecision(), false
}

func (c *decisionCache) Put(name string, d domain.BlockDecision) { c.lru.Add(name, d) }

func (c *decisionCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted by the eviction callback.
func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

func (disabledCache) Get(string) (domain.BlockDecision, bool) { return domain.EmptyDecision(), false }
func (disabledCache) Put(string, domain.BlockDecision)        {}
func (disabledCache) Len() int                                { return 0 }
func (disabledCache) Purge()                                  {}
func (disabledCache) Stats() (uint64, uint64, uint64)         { return 0, 0, 0 }

var (
	_ blacklist.DecisionCache = (*decisionCache)(nil)
	_ blacklist.DecisionCache = disabledCache{}
)
