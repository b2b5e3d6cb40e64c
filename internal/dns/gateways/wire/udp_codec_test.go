package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

func newTestCodec() *udpCodec {
	return NewUDPCodec(log.NewNoopLogger(), 0)
}

// buildQuery packs a single-question query with x/net's builder, which never compresses
// the question name.
func buildQuery(t testing.TB, hdr dnsmessage.Header, name string, qtype dnsmessage.Type, qclass dnsmessage.Class) []byte {
	t.Helper()
	b := dnsmessage.NewBuilder(make([]byte, 0, 512), hdr)
	require.NoError(t, b.StartQuestions())
	require.NoError(t, b.Question(dnsmessage.Question{
		Name:  dnsmessage.MustNewName(name),
		Type:  qtype,
		Class: qclass,
	}))
	msg, err := b.Finish()
	require.NoError(t, err)
	return msg
}

func rawHeader(id, flags, qd, an, ns, ar uint16) []byte {
	data := make([]byte, 0, 512)
	data = binary.BigEndian.AppendUint16(data, id)
	data = binary.BigEndian.AppendUint16(data, flags)
	data = binary.BigEndian.AppendUint16(data, qd)
	data = binary.BigEndian.AppendUint16(data, an)
	data = binary.BigEndian.AppendUint16(data, ns)
	data = binary.BigEndian.AppendUint16(data, ar)
	return data
}

func TestUdpCodec_DecodeHeader(t *testing.T) {
	codec := newTestCodec()

	data := buildQuery(t, dnsmessage.Header{ID: 12345, RecursionDesired: true, CheckingDisabled: true},
		"example.com.", dnsmessage.TypeA, dnsmessage.ClassINET)

	h, err := codec.DecodeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(12345), h.ID)
	assert.True(t, h.Flags.Has(domain.FlagRD))
	assert.True(t, h.Flags.Has(domain.FlagCD))
	assert.False(t, h.IsResponse())
	assert.Equal(t, uint16(1), h.QDCount)
	assert.Zero(t, h.ANCount)
	assert.Zero(t, h.NSCount)
	assert.Zero(t, h.ARCount)
}

func TestUdpCodec_DecodeHeader_Truncated(t *testing.T) {
	codec := newTestCodec()

	for _, n := range []int{0, 1, 11} {
		_, err := codec.DecodeHeader(make([]byte, n))
		assert.ErrorIs(t, err, domain.ErrTruncatedHeader, "len=%d", n)
	}

	_, err := codec.DecodeHeader(make([]byte, 12))
	assert.NoError(t, err)
}

func TestUdpCodec_Decode(t *testing.T) {
	codec := newTestCodec()

	tests := []struct {
		name     string
		data     []byte
		wantErr  error
		expected domain.Question
	}{
		{
			name: "valid A query",
			data: buildQuery(t, dnsmessage.Header{ID: 1, RecursionDesired: true},
				"example.com.", dnsmessage.TypeA, dnsmessage.ClassINET),
			expected: domain.Question{Name: "example.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
		},
		{
			name: "MX query keeps type",
			data: buildQuery(t, dnsmessage.Header{ID: 2},
				"mail.example.org.", dnsmessage.TypeMX, dnsmessage.ClassINET),
			expected: domain.Question{Name: "mail.example.org", Type: domain.RRTypeMX, Class: domain.RRClassIN},
		},
		{
			name: "single label",
			data: buildQuery(t, dnsmessage.Header{ID: 3},
				"localhost.", dnsmessage.TypeA, dnsmessage.ClassCHAOS),
			expected: domain.Question{Name: "localhost", Type: domain.RRTypeA, Class: domain.RRClassCH},
		},
		{
			name: "root name",
			data: func() []byte {
				data := rawHeader(4, 0, 1, 0, 0, 0)
				data = append(data, 0)
				data = binary.BigEndian.AppendUint16(data, 2)
				return binary.BigEndian.AppendUint16(data, 1)
			}(),
			expected: domain.Question{Name: "", Type: domain.RRTypeNS, Class: domain.RRClassIN},
		},
		{
			name:    "header only",
			data:    rawHeader(5, 0x0100, 1, 0, 0, 0),
			wantErr: domain.ErrTruncatedQuestion,
		},
		{
			name: "label runs past end",
			data: func() []byte {
				data := rawHeader(6, 0, 1, 0, 0, 0)
				return append(data, 10, 'a', 'b')
			}(),
			wantErr: domain.ErrTruncatedQuestion,
		},
		{
			name: "missing terminator",
			data: func() []byte {
				data := rawHeader(7, 0, 1, 0, 0, 0)
				return append(data, 3, 'c', 'o', 'm')
			}(),
			wantErr: domain.ErrTruncatedQuestion,
		},
		{
			name: "missing class",
			data: func() []byte {
				data := rawHeader(8, 0, 1, 0, 0, 0)
				data = append(data, 3, 'c', 'o', 'm', 0)
				return binary.BigEndian.AppendUint16(data, 1)
			}(),
			wantErr: domain.ErrTruncatedQuestion,
		},
		{
			name: "compression pointer",
			data: func() []byte {
				data := rawHeader(9, 0, 1, 0, 0, 0)
				data = append(data, 3, 'w', 'w', 'w', 0xC0, 0x0C)
				data = binary.BigEndian.AppendUint16(data, 1)
				return binary.BigEndian.AppendUint16(data, 1)
			}(),
			wantErr: domain.ErrUnsupportedNameEncoding,
		},
		{
			name: "extended label type",
			data: func() []byte {
				data := rawHeader(10, 0, 1, 0, 0, 0)
				return append(data, 0x41, 0)
			}(),
			wantErr: domain.ErrUnsupportedNameEncoding,
		},
		{
			name:    "short datagram",
			data:    []byte{1, 2, 3, 4, 5},
			wantErr: domain.ErrTruncatedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := codec.Decode(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, msg.Question)
			assert.Equal(t, len(tt.data), msg.QuestionEnd)
		})
	}
}

func TestUdpCodec_Decode_KeepsHeaderOnQuestionError(t *testing.T) {
	codec := newTestCodec()

	msg, err := codec.Decode(rawHeader(0xABCD, 0x0100, 1, 0, 0, 0))
	require.Error(t, err)
	assert.Equal(t, uint16(0xABCD), msg.Header.ID)
}

func TestUdpCodec_Decode_NameLengthBound(t *testing.T) {
	label := strings.Repeat("a", 63)
	// three 63-octet labels plus "com" joined with dots = 195 octets
	name := strings.Join([]string{label, label, label, "com"}, ".") + "."

	data := buildQuery(t, dnsmessage.Header{ID: 1}, name, dnsmessage.TypeA, dnsmessage.ClassINET)

	msg, err := NewUDPCodec(log.NewNoopLogger(), 195).Decode(data)
	require.NoError(t, err)
	assert.Len(t, msg.Question.Name, 195)

	_, err = NewUDPCodec(log.NewNoopLogger(), 194).Decode(data)
	assert.ErrorIs(t, err, domain.ErrNameTooLong)

	_, err = NewUDPCodec(log.NewNoopLogger(), 10).Decode(data)
	assert.ErrorIs(t, err, domain.ErrNameTooLong)
}

func TestUdpCodec_EncodeHeaderInPlace(t *testing.T) {
	codec := newTestCodec()

	query := buildQuery(t, dnsmessage.Header{ID: 777, RecursionDesired: true},
		"blocked.example.", dnsmessage.TypeA, dnsmessage.ClassINET)
	// trailing bytes past the question must survive the rewrite
	query = append(query, 0xDE, 0xAD)
	original := bytes.Clone(query)

	h, err := codec.DecodeHeader(query)
	require.NoError(t, err)

	require.NoError(t, codec.EncodeHeaderInPlace(query, h.ErrorReply(domain.RCodeRefused)))

	assert.Len(t, query, len(original))
	assert.Equal(t, original[domain.HeaderSize:], query[domain.HeaderSize:], "question section must be untouched")

	out, err := codec.DecodeHeader(query)
	require.NoError(t, err)
	assert.Equal(t, uint16(777), out.ID)
	assert.True(t, out.IsResponse())
	assert.True(t, out.Flags.Has(domain.FlagAA|domain.FlagRA|domain.FlagRD))
	assert.Equal(t, domain.RCodeRefused, out.Flags.RCode())

	// the rewritten message is still a valid DNS response to a standard parser
	var p dnsmessage.Parser
	hdr, err := p.Start(query)
	require.NoError(t, err)
	assert.Equal(t, dnsmessage.RCodeRefused, hdr.RCode)
	assert.True(t, hdr.Response)
	q, err := p.Question()
	require.NoError(t, err)
	assert.Equal(t, "blocked.example.", q.Name.String())
}

func TestUdpCodec_EncodeHeaderInPlace_Short(t *testing.T) {
	codec := newTestCodec()
	err := codec.EncodeHeaderInPlace(make([]byte, 4), domain.Header{})
	assert.True(t, errors.Is(err, domain.ErrTruncatedHeader))
}

func BenchmarkUdpCodec_Decode(b *testing.B) {
	codec := newTestCodec()
	data := buildQuery(b, dnsmessage.Header{ID: 1, RecursionDesired: true},
		"www.some-long-subdomain.example.com.", dnsmessage.TypeA, dnsmessage.ClassINET)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
