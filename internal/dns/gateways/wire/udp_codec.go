// Package wire provides decoding of DNS messages received over UDP and in-place header
// rewriting for locally generated error responses. It handles the subset of the RFC 1035
// wire format that a filtering forwarder needs: the header and one uncompressed question.
package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

// labelTypeMask selects the two high bits of a length octet. 11 is a compression
// pointer, 01 and 10 are extended label types; none of them is accepted.
const labelTypeMask = 0xC0

// udpCodec implements the DNSCodec interface for standard DNS over UDP messages.
type udpCodec struct {
	logger     log.Logger
	maxNameLen int
}

// NewUDPCodec creates a codec that rejects question names longer than maxNameLen octets
// in their dotted form. A non-positive maxNameLen selects DefaultMaxNameLength.
func NewUDPCodec(logger log.Logger, maxNameLen int) *udpCodec {
	if maxNameLen <= 0 {
		maxNameLen = DefaultMaxNameLength
	}
	return &udpCodec{
		logger:     logger,
		maxNameLen: maxNameLen,
	}
}

// DecodeHeader parses the 12-octet header at the start of data.
func (c *udpCodec) DecodeHeader(data []byte) (domain.Header, error) {
	if len(data) < domain.HeaderSize {
		return domain.Header{}, fmt.Errorf("%w: got %d octets", domain.ErrTruncatedHeader, len(data))
	}
	return domain.Header{
		ID:      binary.BigEndian.Uint16(data[0:2]),
		Flags:   domain.Flags(binary.BigEndian.Uint16(data[2:4])),
		QDCount: binary.BigEndian.Uint16(data[4:6]),
		ANCount: binary.BigEndian.Uint16(data[6:8]),
		NSCount: binary.BigEndian.Uint16(data[8:10]),
		ARCount: binary.BigEndian.Uint16(data[10:12]),
	}, nil
}

// DecodeQuestion parses the question that immediately follows the header.
func (c *udpCodec) DecodeQuestion(data []byte) (domain.Question, int, error) {
	if len(data) < domain.HeaderSize {
		return domain.Question{}, 0, fmt.Errorf("%w: got %d octets", domain.ErrTruncatedHeader, len(data))
	}
	name, offset, err := decodeName(data, domain.HeaderSize, c.maxNameLen)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if offset+4 > len(data) {
		return domain.Question{}, 0, fmt.Errorf("%w: missing type and class after %q", domain.ErrTruncatedQuestion, name)
	}
	q := domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4])),
	}
	return q, offset + 4, nil
}

// Decode parses the header and the first question of data.
func (c *udpCodec) Decode(data []byte) (domain.Message, error) {
	h, err := c.DecodeHeader(data)
	if err != nil {
		return domain.Message{}, err
	}
	q, end, err := c.DecodeQuestion(data)
	if err != nil {
		c.logger.Debug(map[string]any{
			"id":    h.ID,
			"size":  len(data),
			"error": err.Error(),
		}, "Failed to decode question section")
		return domain.Message{Header: h}, err
	}
	return domain.Message{Header: h, Question: q, QuestionEnd: end}, nil
}

// EncodeHeaderInPlace overwrites the header octets of buf. Everything after the header,
// including the original question section, is left as it was.
func (c *udpCodec) EncodeHeaderInPlace(buf []byte, h domain.Header) error {
	if len(buf) < domain.HeaderSize {
		return fmt.Errorf("%w: got %d octets", domain.ErrTruncatedHeader, len(buf))
	}
	binary.BigEndian.PutUint16(buf[0:2], h.ID)
	binary.BigEndian.PutUint16(buf[2:4], uint16(h.Flags))
	binary.BigEndian.PutUint16(buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], h.ARCount)
	return nil
}

// decodeName walks sequential length-prefixed labels starting at offset and returns the
// dot-joined name and the offset just past the terminating zero octet. The root name
// decodes to "".
func decodeName(data []byte, offset, maxLen int) (string, int, error) {
	var sb strings.Builder
	for {
		if offset >= len(data) {
			return "", 0, fmt.Errorf("%w: name runs past end of message", domain.ErrTruncatedQuestion)
		}
		length := int(data[offset])
		if length == 0 {
			offset++
			break
		}
		if length&labelTypeMask != 0 {
			return "", 0, fmt.Errorf("%w: length octet 0x%02x at offset %d", domain.ErrUnsupportedNameEncoding, length, offset)
		}
		offset++
		if offset+length > len(data) {
			return "", 0, fmt.Errorf("%w: label runs past end of message", domain.ErrTruncatedQuestion)
		}
		grown := sb.Len() + length
		if sb.Len() > 0 {
			grown++
		}
		if grown > maxLen {
			return "", 0, fmt.Errorf("%w: more than %d octets", domain.ErrNameTooLong, maxLen)
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.Write(data[offset : offset+length])
		offset += length
	}
	return sb.String(), offset, nil
}

var _ DNSCodec = &udpCodec{}
