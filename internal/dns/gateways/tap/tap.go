// Package tap emits a dnstap trace of the datagrams the proxy handles.
// Tracing never blocks the event loop: frames that do not fit in the output
// queue are dropped and counted.
package tap

import (
	"time"

	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

// Kind identifies which leg of a proxied exchange an event describes.
type Kind uint8

const (
	// ClientQuery is a query received from a client.
	ClientQuery Kind = iota
	// ClientResponse is a datagram sent back to a client: an error reply or a relayed answer.
	ClientResponse
	// ForwarderQuery is a query sent to the upstream resolver.
	ForwarderQuery
	// ForwarderResponse is an answer received from the upstream resolver.
	ForwarderResponse
)

func (k Kind) String() string {
	switch k {
	case ClientQuery:
		return "client_query"
	case ClientResponse:
		return "client_response"
	case ForwarderQuery:
		return "forwarder_query"
	case ForwarderResponse:
		return "forwarder_response"
	default:
		return "unknown"
	}
}

// Event is one traced datagram. Payload is only read during Emit.
type Event struct {
	Kind     Kind
	Client   domain.Endpoint
	Upstream domain.Endpoint
	Time     time.Time
	Payload  []byte
}

// Tap receives trace events from the event loop.
type Tap interface {
	Emit(ev Event)
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Emit(Event)   {}
func (Noop) Close() error { return nil }

var _ Tap = Noop{}
