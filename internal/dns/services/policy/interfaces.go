package policy

import "github.com/haukened/rr-dnsfilter/internal/dns/domain"

// Blacklist answers whether a query name must be refused.
type Blacklist interface {
	Decide(name string) domain.BlockDecision
}
