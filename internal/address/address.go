// Package address models the IPv4 and IPv6 endpoints that name regis daemons.
package address

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

var ErrInvalidAddress = errors.New("address: invalid address")

const (
	// ClientsPort is the default daemon port for client connections.
	ClientsPort uint16 = 1026
	// BroadcastPort is the default daemon port for metric broadcasts.
	BroadcastPort uint16 = 1027
)

type Family int

const (
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Address is implemented by IPv4Address and IPv6Address.
type Address interface {
	fmt.Stringer
	Family() Family
	IP() netip.Addr
}

// Parse accepts either textual form. Anything containing ':' is treated as IPv6.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return ParseIPv6(s)
	}
	return ParseIPv4(s)
}

// FromIP converts a standard library address into the regis representation.
func FromIP(ip netip.Addr) (Address, error) {
	if !ip.IsValid() {
		return nil, fmt.Errorf("%w: zero netip.Addr", ErrInvalidAddress)
	}
	ip = ip.Unmap()
	if ip.Is4() {
		return IPv4Address{octets: ip.As4()}, nil
	}
	raw := ip.As16()
	groups := make([]string, 8)
	for i := range groups {
		groups[i] = fmt.Sprintf("%02X%02X", raw[2*i], raw[2*i+1])
	}
	return IPv6FromGroups(groups)
}

// Endpoint pairs an address with a TCP port.
type Endpoint struct {
	Addr Address
	Port uint16
}

func (e Endpoint) String() string {
	if e.Addr == nil {
		return net.JoinHostPort("", strconv.Itoa(int(e.Port)))
	}
	return net.JoinHostPort(e.Addr.String(), strconv.Itoa(int(e.Port)))
}

// ParseEndpoint accepts "host:port" or a bare address, which gets defaultPort.
func ParseEndpoint(raw string, defaultPort uint16) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		addr, perr := Parse(raw)
		if perr != nil {
			return Endpoint{}, perr
		}
		return Endpoint{Addr: addr, Port: defaultPort}, nil
	}
	addr, err := Parse(host)
	if err != nil {
		return Endpoint{}, err
	}
	p, err := strconv.ParseUint(strings.TrimSpace(port), 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: port %q", ErrInvalidAddress, port)
	}
	return Endpoint{Addr: addr, Port: uint16(p)}, nil
}
