package blacklist

import "github.com/haukened/rr-dnsfilter/internal/dns/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the filter needs from a Bloom filter.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory constructs Bloom filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches block decisions by query name with basic metrics.
type DecisionCache interface {
	Get(name string) (domain.BlockDecision, bool)
	Put(name string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// LineSource provides raw blacklist lines, e.g. a text file or a compiled snapshot.
type LineSource interface {
	Lines() ([]string, error)
}

// SnapshotStore persists a compiled blacklist and replays it as a LineSource.
type SnapshotStore interface {
	LineSource
	// Import replaces the stored entries with the normalized form of lines
	// and returns how many entries were written.
	Import(lines []string, source string, updatedUnix int64) (int, error)
	Stats() SnapshotStats
	Close() error
}
