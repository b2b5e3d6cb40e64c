// Package transport owns the proxy's two UDP endpoints and the event loop that
// multiplexes them. Client queries are classified by a Policy and either
// answered in place or forwarded upstream; upstream answers are routed back to
// the client recorded in the correlation table.
package transport

import (
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

// Policy classifies client datagrams and rewrites rejected ones into replies.
type Policy interface {
	Decide(buf []byte) domain.Verdict
	Rewrite(buf []byte, v domain.Verdict) error
}

// Correlator maps transaction IDs of forwarded queries back to their clients.
type Correlator interface {
	Record(id uint16, client domain.Endpoint) int
	Resolve(id uint16) (domain.Endpoint, bool)
}

// KindAnswer labels relayed upstream answers in the traffic trace. Client
// datagrams are labelled with their verdict.
const KindAnswer = "answer"
