package domain

import (
	"fmt"
	"net/netip"
)

// Endpoint is a UDP peer: a client or the upstream resolver.
type Endpoint struct {
	IP   netip.Addr
	Port uint16
}

// EndpointFromAddrPort converts a socket address, unmapping IPv4-in-IPv6 forms.
func EndpointFromAddrPort(ap netip.AddrPort) Endpoint {
	return Endpoint{IP: ap.Addr().Unmap(), Port: ap.Port()}
}

// AddrPort returns the endpoint as a netip.AddrPort suitable for WriteToUDPAddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.IP, e.Port)
}

// Equal compares two endpoints, treating IPv4 and IPv4-mapped IPv6 addresses as equal.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.Port == o.Port && e.IP.Unmap() == o.IP.Unmap()
}

// IsValid reports whether the endpoint carries an address.
func (e Endpoint) IsValid() bool { return e.IP.IsValid() }

// String formats the endpoint as ip#port, the form used in traffic logs.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s#%d", e.IP, e.Port)
}
