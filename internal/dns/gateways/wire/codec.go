package wire

import (
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

// DefaultMaxNameLength bounds the dot-joined presentation form of a question name.
const DefaultMaxNameLength = 255

// DNSCodec decodes the parts of a DNS message the proxy inspects and rewrites headers of
// queries it answers itself. It never re-encodes a question section.
type DNSCodec interface {
	// DecodeHeader reads the fixed 12-octet header.
	DecodeHeader(data []byte) (domain.Header, error)

	// DecodeQuestion reads the first question, which starts right after the header.
	// It returns the question and the offset just past its class field.
	DecodeQuestion(data []byte) (domain.Question, int, error)

	// Decode reads the header followed by the first question.
	Decode(data []byte) (domain.Message, error)

	// EncodeHeaderInPlace overwrites the first 12 octets of buf with h.
	EncodeHeaderInPlace(buf []byte, h domain.Header) error
}
