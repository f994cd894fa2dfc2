package address

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// IPv4Address holds four validated octets.
type IPv4Address struct {
	octets [4]uint8
}

// IPv4FromOctets requires exactly four values in [0,255].
func IPv4FromOctets(octets []int) (IPv4Address, error) {
	if len(octets) != 4 {
		return IPv4Address{}, fmt.Errorf("%w: ipv4 needs 4 octets, got %d", ErrInvalidAddress, len(octets))
	}
	var out IPv4Address
	for i, v := range octets {
		if v < 0 || v > 255 {
			return IPv4Address{}, fmt.Errorf("%w: octet %d out of range: %d", ErrInvalidAddress, i, v)
		}
		out.octets[i] = uint8(v)
	}
	return out, nil
}

func ParseIPv4(s string) (IPv4Address, error) {
	tokens := strings.Split(strings.TrimSpace(s), ".")
	if len(tokens) != 4 {
		return IPv4Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var out IPv4Address
	for i, tok := range tokens {
		v, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return IPv4Address{}, fmt.Errorf("%w: %q octet %d", ErrInvalidAddress, s, i)
		}
		out.octets[i] = uint8(v)
	}
	return out, nil
}

func (a IPv4Address) Octets() [4]uint8 {
	return a.octets
}

func (a IPv4Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a.octets[0], a.octets[1], a.octets[2], a.octets[3])
}

func (a IPv4Address) Family() Family {
	return FamilyIPv4
}

func (a IPv4Address) IP() netip.Addr {
	return netip.AddrFrom4(a.octets)
}

func (a IPv4Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *IPv4Address) UnmarshalText(text []byte) error {
	parsed, err := ParseIPv4(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
