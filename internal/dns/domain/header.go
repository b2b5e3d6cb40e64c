package domain

// HeaderSize is the fixed length of a DNS message header in octets.
const HeaderSize = 12

// Flags is the 16-bit flags word of a DNS header (RFC 1035 section 4.1.1).
type Flags uint16

// Individual flag bits. Z is the reserved bit that must be zero in queries.
const (
	FlagQR Flags = 1 << 15 // response
	FlagAA Flags = 1 << 10 // authoritative answer
	FlagTC Flags = 1 << 9  // truncated
	FlagRD Flags = 1 << 8  // recursion desired
	FlagRA Flags = 1 << 7  // recursion available
	FlagZ  Flags = 1 << 6  // reserved
	FlagAD Flags = 1 << 5  // authentic data
	FlagCD Flags = 1 << 4  // checking disabled

	opcodeMask Flags = 0x7800
	rcodeMask  Flags = 0x000F
)

// Has reports whether every bit in f is set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// Set returns fl with the bits in f set.
func (fl Flags) Set(f Flags) Flags { return fl | f }

// Clear returns fl with the bits in f cleared.
func (fl Flags) Clear(f Flags) Flags { return fl &^ f }

// Opcode returns the 4-bit opcode field.
func (fl Flags) Opcode() uint8 { return uint8((fl & opcodeMask) >> 11) }

// RCode returns the 4-bit response code field.
func (fl Flags) RCode() RCode { return RCode(fl & rcodeMask) }

// WithRCode returns fl with the response code field replaced.
func (fl Flags) WithRCode(r RCode) Flags {
	return (fl &^ rcodeMask) | (Flags(r) & rcodeMask)
}

// Header is the decoded fixed part of a DNS message.
type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// IsResponse reports whether the QR bit is set.
func (h Header) IsResponse() bool { return h.Flags.Has(FlagQR) }

// ErrorReply returns the header of an error response to this query: QR, AA and RA set,
// the given response code, and answer and authority counts forced to zero. The ID,
// opcode, RD, question and additional counts are carried over unchanged.
func (h Header) ErrorReply(rcode RCode) Header {
	out := h
	out.Flags = h.Flags.Set(FlagQR | FlagAA | FlagRA).WithRCode(rcode)
	out.ANCount = 0
	out.NSCount = 0
	return out
}
