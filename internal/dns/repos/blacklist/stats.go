package blacklist

// Stats reports lightweight filter metrics.
// All counters are best-effort snapshots.
type Stats struct {
	Entries       int    // number of stored entries
	Lookups       uint64 // total IsBlacklisted/Decide calls
	Blocked       uint64 // lookups that matched an entry
	BloomNegative uint64 // lookups answered by the Bloom prefilter alone
	Scans         uint64 // lookups that walked the entry list
	CacheHits     uint64
	CacheMisses   uint64
	Evictions     uint64
}

// SnapshotStats reports snapshot metadata.
// Values are read from the store in a read-only transaction.
type SnapshotStats struct {
	Entries     uint64 // number of stored entries
	Version     uint64 // incremented on every import (0 if never imported)
	UpdatedUnix int64  // import time, seconds since epoch
	Source      string // where the imported lines came from
}
