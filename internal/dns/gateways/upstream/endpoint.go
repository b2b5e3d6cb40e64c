package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
)

// Error message constants for consistent error handling
const (
	errEmptyHost    = "resolver host is empty"
	errInvalidPort  = "resolver port %d out of range"
	errNotIPv4      = "resolver %q: %w"
	errLookupFailed = "lookup %q: %w"
)

// ErrNoIPv4 is returned when a resolver hostname has no IPv4 address.
var ErrNoIPv4 = errors.New("no IPv4 address")

// LookupFunc resolves host to its addresses for the given network ("ip4").
// net.DefaultResolver.LookupNetIP satisfies it.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Options configures ResolveEndpoint.
type Options struct {
	Host    string
	Port    uint16
	Timeout time.Duration
	// options to inject for testing purposes
	Lookup LookupFunc
}

// ResolveEndpoint turns the configured resolver into the endpoint the proxy
// forwards to. IPv4 literals are used as-is; hostnames are looked up once and
// the first IPv4 address wins.
func ResolveEndpoint(ctx context.Context, opts Options) (domain.Endpoint, error) {
	if opts.Host == "" {
		return domain.Endpoint{}, errors.New(errEmptyHost)
	}
	if opts.Port == 0 {
		return domain.Endpoint{}, fmt.Errorf(errInvalidPort, opts.Port)
	}
	if addr, err := netip.ParseAddr(opts.Host); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return domain.Endpoint{}, fmt.Errorf(errNotIPv4, opts.Host, ErrNoIPv4)
		}
		return domain.Endpoint{IP: addr, Port: opts.Port}, nil
	}

	if opts.Lookup == nil {
		opts.Lookup = net.DefaultResolver.LookupNetIP
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	addrs, err := opts.Lookup(ctx, "ip4", opts.Host)
	if err != nil {
		return domain.Endpoint{}, fmt.Errorf(errLookupFailed, opts.Host, err)
	}
	for _, a := range addrs {
		if a = a.Unmap(); a.Is4() {
			return domain.Endpoint{IP: a, Port: opts.Port}, nil
		}
	}
	return domain.Endpoint{}, fmt.Errorf(errLookupFailed, opts.Host, ErrNoIPv4)
}
