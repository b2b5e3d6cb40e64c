package domain

// BlockDecision is the outcome of evaluating a query name against the blacklist.
type BlockDecision struct {
	Blocked bool   // true if some entry is a substring of the name
	Entry   string // first entry, in load order, that matched
}

// IsBlocked is a convenience accessor.
func (d BlockDecision) IsBlocked() bool { return d.Blocked }

// EmptyDecision returns a not-blocked decision.
func EmptyDecision() BlockDecision { return BlockDecision{} }

// BlockedBy returns a blocked decision attributed to entry.
func BlockedBy(entry string) BlockDecision { return BlockDecision{Blocked: true, Entry: entry} }
