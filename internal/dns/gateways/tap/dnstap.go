package tap

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	dnstap "github.com/dnstap/golang-dnstap"
	"google.golang.org/protobuf/proto"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
)

// Options configures a dnstap sink.
type Options struct {
	// Identity and Version are copied into every frame.
	Identity string
	Version  string
	Logger   log.Logger
}

// Sink writes Events as dnstap frames to a frame-stream output.
type Sink struct {
	out      dnstap.Output
	queue    chan []byte
	identity []byte
	version  []byte
	logger   log.Logger

	closed  atomic.Bool
	once    sync.Once
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewFileSink writes a frame-stream file at path.
func NewFileSink(path string, opts Options) (*Sink, error) {
	out, err := dnstap.NewFrameStreamOutputFromFilename(path)
	if err != nil {
		return nil, fmt.Errorf("open dnstap file %s: %w", path, err)
	}
	return newSink(out, opts), nil
}

// NewSocketSink streams frames to a dnstap collector listening on a unix socket.
// The connection is established, and re-established, in the background.
func NewSocketSink(path string, opts Options) (*Sink, error) {
	out, err := dnstap.NewFrameStreamSockOutput(&net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("open dnstap socket %s: %w", path, err)
	}
	return newSink(out, opts), nil
}

// NewWriterSink writes a frame stream to w.
func NewWriterSink(w io.Writer, opts Options) (*Sink, error) {
	out, err := dnstap.NewFrameStreamOutput(w)
	if err != nil {
		return nil, fmt.Errorf("open dnstap writer: %w", err)
	}
	return newSink(out, opts), nil
}

func newSink(out dnstap.Output, opts Options) *Sink {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	s := &Sink{
		out:      out,
		queue:    out.GetOutputChannel(),
		identity: []byte(opts.Identity),
		version:  []byte(opts.Version),
		logger:   logger,
	}
	go out.RunOutputLoop()
	return s
}

// Emit encodes ev and queues it without blocking. A full queue drops the frame.
func (s *Sink) Emit(ev Event) {
	if s.closed.Load() {
		return
	}
	frame, err := proto.Marshal(s.message(ev))
	if err != nil {
		s.logger.Debug(map[string]any{"kind": ev.Kind.String(), "error": err.Error()}, "dnstap marshal failed")
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- frame:
		s.sent.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// Close flushes queued frames and releases the output. It must not race with
// Emit; once it returns, Emit is a no-op.
func (s *Sink) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.out.Close()
		s.logger.Debug(map[string]any{
			"sent":    s.sent.Load(),
			"dropped": s.dropped.Load(),
		}, "dnstap sink closed")
	})
	return nil
}

// Stats returns how many frames were queued and dropped.
func (s *Sink) Stats() (sent, dropped uint64) {
	return s.sent.Load(), s.dropped.Load()
}

func (s *Sink) message(ev Event) *dnstap.Dnstap {
	m := &dnstap.Message{
		SocketProtocol: dnstap.SocketProtocol_UDP.Enum(),
	}
	family := dnstap.SocketFamily_INET
	if ev.Client.IP.IsValid() && !ev.Client.IP.Is4() {
		family = dnstap.SocketFamily_INET6
	}
	m.SocketFamily = family.Enum()

	if ev.Client.IsValid() {
		m.QueryAddress = ev.Client.IP.AsSlice()
		m.QueryPort = proto.Uint32(uint32(ev.Client.Port))
	}
	if ev.Upstream.IsValid() {
		m.ResponseAddress = ev.Upstream.IP.AsSlice()
		m.ResponsePort = proto.Uint32(uint32(ev.Upstream.Port))
	}

	sec := proto.Uint64(uint64(ev.Time.Unix()))
	nsec := proto.Uint32(uint32(ev.Time.Nanosecond()))
	switch ev.Kind {
	case ClientQuery, ForwarderQuery:
		m.QueryTimeSec, m.QueryTimeNsec = sec, nsec
		m.QueryMessage = ev.Payload
	default:
		m.ResponseTimeSec, m.ResponseTimeNsec = sec, nsec
		m.ResponseMessage = ev.Payload
	}

	switch ev.Kind {
	case ClientQuery:
		m.Type = dnstap.Message_CLIENT_QUERY.Enum()
	case ClientResponse:
		m.Type = dnstap.Message_CLIENT_RESPONSE.Enum()
	case ForwarderQuery:
		m.Type = dnstap.Message_FORWARDER_QUERY.Enum()
	default:
		m.Type = dnstap.Message_FORWARDER_RESPONSE.Enum()
	}

	return &dnstap.Dnstap{
		Type:     dnstap.Dnstap_MESSAGE.Enum(),
		Identity: s.identity,
		Version:  s.version,
		Message:  m,
	}
}

var _ Tap = (*Sink)(nil)
