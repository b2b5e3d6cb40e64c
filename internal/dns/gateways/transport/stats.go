package transport

import "sync/atomic"

// Stats is a snapshot of proxy counters.
type Stats struct {
	Received         uint64 // client datagrams received
	Forwarded        uint64 // queries sent upstream
	FormatErrors     uint64
	NotImplemented   uint64
	Refused          uint64
	Answers          uint64 // upstream datagrams received
	Relayed          uint64 // answers sent back to a client
	Unmatched        uint64 // answers with no correlation entry
	UnexpectedSource uint64 // answers not sent by the configured resolver
	Dropped          uint64 // datagrams too short to carry a header
	ReadErrors       uint64
	WriteErrors      uint64
}

type counters struct {
	received         atomic.Uint64
	forwarded        atomic.Uint64
	formatErrors     atomic.Uint64
	notImplemented   atomic.Uint64
	refused          atomic.Uint64
	answers          atomic.Uint64
	relayed          atomic.Uint64
	unmatched        atomic.Uint64
	unexpectedSource atomic.Uint64
	dropped          atomic.Uint64
	readErrors       atomic.Uint64
	writeErrors      atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:         c.received.Load(),
		Forwarded:        c.forwarded.Load(),
		FormatErrors:     c.formatErrors.Load(),
		NotImplemented:   c.notImplemented.Load(),
		Refused:          c.refused.Load(),
		Answers:          c.answers.Load(),
		Relayed:          c.relayed.Load(),
		Unmatched:        c.unmatched.Load(),
		UnexpectedSource: c.unexpectedSource.Load(),
		Dropped:          c.dropped.Load(),
		ReadErrors:       c.readErrors.Load(),
		WriteErrors:      c.writeErrors.Load(),
	}
}

// Fields renders the snapshot as structured log fields.
func (s Stats) Fields() map[string]any {
	return map[string]any{
		"received":          s.Received,
		"forwarded":         s.Forwarded,
		"format_errors":     s.FormatErrors,
		"not_implemented":   s.NotImplemented,
		"refused":           s.Refused,
		"answers":           s.Answers,
		"relayed":           s.Relayed,
		"unmatched":         s.Unmatched,
		"unexpected_source": s.UnexpectedSource,
		"dropped":           s.Dropped,
		"read_errors":       s.ReadErrors,
		"write_errors":      s.WriteErrors,
	}
}
