package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/clock"
	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/tap"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/wire"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/correlation"
)

// DefaultBufferSize is the receive buffer capacity in octets.
const DefaultBufferSize = 1000

// Options configures a Proxy. Codec, Policy and Upstream are required.
type Options struct {
	// ListenAddr is the client-facing address, e.g. ":53".
	ListenAddr string
	// Upstream is the resolver queries are forwarded to.
	Upstream domain.Endpoint
	// BufferSize bounds received datagrams; longer ones are truncated.
	BufferSize int

	Codec  wire.DNSCodec
	Policy Policy
	// options to inject for testing purposes
	Table  Correlator
	Tap    tap.Tap
	Clock  clock.Clock
	Logger log.Logger
}

// datagram is one receive result handed from a reader to the event loop.
// data aliases the reader's buffer until the loop acknowledges it.
type datagram struct {
	data []byte
	from netip.AddrPort
	err  error
}

// endpoint is a socket plus the reader goroutine feeding the event loop.
type endpoint struct {
	conn  *net.UDPConn
	ready chan datagram
	ack   chan struct{}
}

// Proxy is the event loop. All datagram handling happens on a single goroutine,
// so the correlation table needs no locking.
type Proxy struct {
	listenAddr string
	upstream   domain.Endpoint
	bufSize    int

	codec  wire.DNSCodec
	policy Policy
	table  Correlator
	tap    tap.Tap
	clock  clock.Clock
	logger log.Logger

	client   *endpoint
	resolver *endpoint
	local    domain.Endpoint

	stats counters

	// Synchronization for graceful shutdown
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewProxy validates opts and fills in defaults. Sockets are bound by Start.
func NewProxy(opts Options) (*Proxy, error) {
	if opts.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("policy is required")
	}
	if !opts.Upstream.IsValid() || opts.Upstream.Port == 0 {
		return nil, fmt.Errorf("invalid upstream endpoint %s", opts.Upstream)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.BufferSize < domain.HeaderSize {
		return nil, fmt.Errorf("buffer size %d is smaller than a DNS header", opts.BufferSize)
	}
	if opts.Table == nil {
		opts.Table = correlation.New()
	}
	if opts.Tap == nil {
		opts.Tap = tap.Noop{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Proxy{
		listenAddr: opts.ListenAddr,
		upstream:   opts.Upstream,
		bufSize:    opts.BufferSize,
		codec:      opts.Codec,
		policy:     opts.Policy,
		table:      opts.Table,
		tap:        opts.Tap,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}, nil
}

// Start binds the client-facing socket and an ephemeral upstream-facing socket,
// then starts the event loop. It returns once both sockets are bound.
func (p *Proxy) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("proxy already running")
	}

	laddr, err := net.ResolveUDPAddr("udp", p.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve listen address %s: %w", p.listenAddr, err)
	}
	clientConn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", p.listenAddr, err)
	}
	// Unconnected, so answers from any source are received and can be compared
	// against the configured resolver.
	upstreamConn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		_ = clientConn.Close()
		return fmt.Errorf("failed to bind upstream socket: %w", err)
	}

	p.client = newEndpoint(clientConn)
	p.resolver = newEndpoint(upstreamConn)
	p.local = domain.EndpointFromAddrPort(clientConn.LocalAddr().(*net.UDPAddr).AddrPort())
	p.stopCh = make(chan struct{})
	p.running = true

	p.wg.Add(3)
	go p.readLoop(p.client)
	go p.readLoop(p.resolver)
	go p.serve(ctx)

	p.logger.Info(map[string]any{
		"listen":      clientConn.LocalAddr().String(),
		"upstream":    p.upstream.String(),
		"local":       upstreamConn.LocalAddr().String(),
		"buffer_size": p.bufSize,
	}, "DNS proxy started")
	return nil
}

// Run starts the proxy, blocks until ctx is cancelled, then stops it.
func (p *Proxy) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return p.Stop()
}

// Stop closes both sockets and waits for the event loop and readers to exit.
func (p *Proxy) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)

	var errs []error
	for _, ep := range []*endpoint{p.client, p.resolver} {
		if err := ep.conn.Close(); err != nil {
			p.logger.Warn(map[string]any{"error": err.Error()}, "Error closing UDP connection")
			errs = append(errs, err)
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info(p.Stats().Fields(), "DNS proxy stopped")
	return errors.Join(errs...)
}

// Addr returns the bound client-facing address, or nil before Start.
func (p *Proxy) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	return p.client.conn.LocalAddr()
}

// Stats returns a snapshot of the proxy counters.
func (p *Proxy) Stats() Stats { return p.stats.snapshot() }

func newEndpoint(conn *net.UDPConn) *endpoint {
	return &endpoint{
		conn:  conn,
		ready: make(chan datagram),
		ack:   make(chan struct{}, 1),
	}
}

// readLoop performs one receive at a time and waits for the event loop to
// finish with the buffer before receiving again.
func (p *Proxy) readLoop(ep *endpoint) {
	defer p.wg.Done()
	buf := make([]byte, p.bufSize)
	for {
		n, from, err := ep.conn.ReadFromUDPAddrPort(buf)
		if err != nil && errors.Is(err, net.ErrClosed) {
			return
		}
		select {
		case ep.ready <- datagram{data: buf[:n], from: from, err: err}:
		case <-p.stopCh:
			return
		}
		select {
		case <-ep.ack:
		case <-p.stopCh:
			return
		}
	}
}

// serve is the event loop. On each wake it handles every ready endpoint once,
// client first.
func (p *Proxy) serve(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug(nil, "DNS proxy stopping due to context cancellation")
			return
		case <-p.stopCh:
			p.logger.Debug(nil, "DNS proxy stopping due to stop signal")
			return
		case d := <-p.client.ready:
			p.handle(p.client, d, p.handleClient)
			select {
			case u := <-p.resolver.ready:
				p.handle(p.resolver, u, p.handleUpstream)
			default:
			}
		case u := <-p.resolver.ready:
			select {
			case d := <-p.client.ready:
				p.handle(p.client, d, p.handleClient)
			default:
			}
			p.handle(p.resolver, u, p.handleUpstream)
		}
	}
}

func (p *Proxy) handle(ep *endpoint, d datagram, fn func(datagram)) {
	fn(d)
	ep.ack <- struct{}{}
}

func (p *Proxy) handleClient(d datagram) {
	if d.err != nil {
		p.stats.readErrors.Add(1)
		p.logger.Warn(map[string]any{"error": d.err.Error()}, "Failed to read client datagram")
		return
	}
	p.stats.received.Add(1)
	client := domain.EndpointFromAddrPort(d.from)
	buf := d.data
	p.tap.Emit(tap.Event{Kind: tap.ClientQuery, Client: client, Time: p.clock.Now(), Payload: buf})

	if len(buf) < domain.HeaderSize {
		p.stats.dropped.Add(1)
		p.logger.Debug(map[string]any{"src": client.String(), "size": len(buf)}, "Dropping datagram shorter than a DNS header")
		return
	}

	v := p.policy.Decide(buf)
	p.trace(client, p.local, v.Action.String(), v.Message.Question.Name)

	if v.IsForward() {
		p.table.Record(v.Message.Header.ID, client)
		if _, err := p.resolver.conn.WriteToUDPAddrPort(buf, p.upstream.AddrPort()); err != nil {
			p.stats.writeErrors.Add(1)
			p.logger.Error(map[string]any{
				"upstream": p.upstream.String(),
				"query_id": v.Message.Header.ID,
				"error":    err.Error(),
			}, "Failed to forward query")
			return
		}
		p.stats.forwarded.Add(1)
		p.tap.Emit(tap.Event{Kind: tap.ForwarderQuery, Client: client, Upstream: p.upstream, Time: p.clock.Now(), Payload: buf})
		return
	}

	switch v.Action {
	case domain.ActionFormatError:
		p.stats.formatErrors.Add(1)
		if v.Reason != nil {
			p.logger.Debug(map[string]any{"src": client.String(), "reason": v.Reason.Error()}, "Malformed query")
		}
	case domain.ActionNotImplemented:
		p.stats.notImplemented.Add(1)
	case domain.ActionRefused:
		p.stats.refused.Add(1)
	}

	if err := p.policy.Rewrite(buf, v); err != nil {
		p.logger.Error(map[string]any{"src": client.String(), "error": err.Error()}, "Failed to build error reply")
		return
	}
	if _, err := p.client.conn.WriteToUDPAddrPort(buf, d.from); err != nil {
		p.stats.writeErrors.Add(1)
		p.logger.Error(map[string]any{
			"client":   client.String(),
			"query_id": v.Message.Header.ID,
			"error":    err.Error(),
		}, "Failed to send error reply")
		return
	}
	p.tap.Emit(tap.Event{Kind: tap.ClientResponse, Client: client, Time: p.clock.Now(), Payload: buf})
}

func (p *Proxy) handleUpstream(d datagram) {
	if d.err != nil {
		p.stats.readErrors.Add(1)
		p.logger.Warn(map[string]any{"error": d.err.Error()}, "Failed to read upstream datagram")
		return
	}
	p.stats.answers.Add(1)
	from := domain.EndpointFromAddrPort(d.from)
	buf := d.data
	p.tap.Emit(tap.Event{Kind: tap.ForwarderResponse, Upstream: from, Time: p.clock.Now(), Payload: buf})

	if len(buf) < domain.HeaderSize {
		p.stats.dropped.Add(1)
		p.logger.Debug(map[string]any{"src": from.String(), "size": len(buf)}, "Dropping datagram shorter than a DNS header")
		return
	}

	// The name is only needed for the trace; a partial decode still yields the ID.
	msg, err := p.codec.Decode(buf)
	if err != nil && !errors.Is(err, domain.ErrTruncatedHeader) {
		p.logger.Debug(map[string]any{"src": from.String(), "error": err.Error()}, "Failed to decode answer question")
	}

	if !from.Equal(p.upstream) {
		p.stats.unexpectedSource.Add(1)
		p.logger.Warn(map[string]any{
			"src":      from.String(),
			"expected": p.upstream.String(),
			"query_id": msg.Header.ID,
		}, "Answer from unexpected source")
	}

	client, ok := p.table.Resolve(msg.Header.ID)
	if !ok {
		p.stats.unmatched.Add(1)
		p.logger.Debug(map[string]any{"src": from.String(), "query_id": msg.Header.ID}, "No pending query for answer")
		return
	}
	p.trace(from, client, KindAnswer, msg.Question.Name)

	if _, err := p.client.conn.WriteToUDPAddrPort(buf, client.AddrPort()); err != nil {
		p.stats.writeErrors.Add(1)
		p.logger.Error(map[string]any{
			"client":   client.String(),
			"query_id": msg.Header.ID,
			"error":    err.Error(),
		}, "Failed to relay answer")
		return
	}
	p.stats.relayed.Add(1)
	p.tap.Emit(tap.Event{Kind: tap.ClientResponse, Client: client, Upstream: from, Time: p.clock.Now(), Payload: buf})
}

// trace emits the per-datagram traffic entry, visible with verbose logging.
func (p *Proxy) trace(src, dst domain.Endpoint, kind, name string) {
	p.logger.Debug(map[string]any{
		"src":  src.String(),
		"dst":  dst.String(),
		"kind": kind,
		"name": name,
	}, "traffic")
}
