package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist"
)

// factory implements blacklist.BloomFactory on top of a BloomSizer.
type factory struct {
	sizer blacklist.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() blacklist.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs a filter sized for capacity entries at the target false-positive rate.
func (f factory) New(capacity uint64, fpRate float64) blacklist.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
