package blacklist

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

// Options configures Build. Every field is optional.
type Options struct {
	// Cache memoizes per-name decisions. Nil disables caching.
	Cache DecisionCache
	// Bloom builds the substring prefilter. Nil disables the prefilter.
	Bloom BloomFactory
	// FPRate is the target false-positive rate for the prefilter.
	FPRate float64
	// MaxEntries caps the number of stored entries. Zero means unlimited.
	MaxEntries int
	Logger     log.Logger
}

// Filter holds blacklist entries and answers substring membership queries.
// It is immutable once built; the decision cache only memoizes results.
type Filter struct {
	entries []string
	lengths []int // distinct entry lengths, ascending
	bloom   BloomFilter
	cache   DecisionCache
	logger  log.Logger

	lookups       atomic.Uint64
	blocked       atomic.Uint64
	bloomNegative atomic.Uint64
	scans         atomic.Uint64
}

// Build normalizes lines into a Filter. Comment and empty lines are skipped,
// duplicates are kept in load order. Zero entries is a valid, pass-everything filter.
func Build(lines []string, opts Options) *Filter {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	f := &Filter{cache: opts.Cache, logger: logger}

	for i, line := range lines {
		entry, ok := NormalizeEntry(line)
		if !ok {
			logger.Debug(map[string]any{"line": i + 1}, "skip blacklist line")
			continue
		}
		if opts.MaxEntries > 0 && len(f.entries) >= opts.MaxEntries {
			logger.Warn(map[string]any{
				"loaded":      len(f.entries),
				"max_entries": opts.MaxEntries,
				"remaining":   len(lines) - i,
			}, "blacklist capacity reached, continuing with entries already loaded")
			break
		}
		f.entries = append(f.entries, entry)
	}

	f.lengths = distinctLengths(f.entries)
	if opts.Bloom != nil && len(f.entries) > 0 {
		f.bloom = opts.Bloom.New(uint64(len(f.entries)), opts.FPRate)
		for _, e := range f.entries {
			f.bloom.Add([]byte(e))
		}
	}
	logger.Debug(map[string]any{
		"entries":       len(f.entries),
		"lengths":       len(f.lengths),
		"bloom_enabled": f.bloom != nil,
		"cache_enabled": f.cache != nil,
	}, "blacklist built")
	return f
}

// IsBlacklisted reports whether some entry is a case-sensitive byte substring of name.
func (f *Filter) IsBlacklisted(name string) bool {
	return f.Decide(name).Blocked
}

// Decide evaluates name through the cache → bloom → scan pipeline.
func (f *Filter) Decide(name string) domain.BlockDecision {
	f.lookups.Add(1)
	if len(f.entries) == 0 {
		return domain.EmptyDecision()
	}
	if f.cache != nil {
		if d, ok := f.cache.Get(name); ok {
			if d.Blocked {
				f.blocked.Add(1)
			}
			return d
		}
	}
	dec := f.evaluate(name)
	if dec.Blocked {
		f.blocked.Add(1)
	}
	if f.cache != nil {
		f.cache.Put(name, dec)
	}
	return dec
}

func (f *Filter) evaluate(name string) domain.BlockDecision {
	if f.bloom != nil && !f.mightMatch(name) {
		f.bloomNegative.Add(1)
		return domain.EmptyDecision()
	}
	f.scans.Add(1)
	for _, e := range f.entries {
		if strings.Contains(name, e) {
			return domain.BlockedBy(e)
		}
	}
	return domain.EmptyDecision()
}

// mightMatch probes the prefilter with every substring of name whose length
// equals the length of some entry. A false result means no entry can match.
func (f *Filter) mightMatch(name string) bool {
	key := []byte(name)
	for _, l := range f.lengths {
		if l > len(key) {
			break
		}
		for i := 0; i+l <= len(key); i++ {
			if f.bloom.MightContain(key[i : i+l]) {
				return true
			}
		}
	}
	return false
}

// Len returns the number of stored entries.
func (f *Filter) Len() int { return len(f.entries) }

// Entries returns a copy of the stored entries in load order.
func (f *Filter) Entries() []string {
	out := make([]string, len(f.entries))
	copy(out, f.entries)
	return out
}

// Stats returns a snapshot of filter and cache counters.
func (f *Filter) Stats() Stats {
	st := Stats{
		Entries:       len(f.entries),
		Lookups:       f.lookups.Load(),
		Blocked:       f.blocked.Load(),
		BloomNegative: f.bloomNegative.Load(),
		Scans:         f.scans.Load(),
	}
	if f.cache != nil {
		st.CacheHits, st.CacheMisses, st.Evictions = f.cache.Stats()
	}
	return st
}

func distinctLengths(entries []string) []int {
	seen := make(map[int]struct{}, 8)
	out := make([]int, 0, 8)
	for _, e := range entries {
		if _, ok := seen[len(e)]; ok {
			continue
		}
		seen[len(e)] = struct{}{}
		out = append(out, len(e))
	}
	sort.Ints(out)
	return out
}
