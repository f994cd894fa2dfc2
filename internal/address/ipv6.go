package address

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

const groupLen = 4

// IPv6Address keeps eight groups of four uppercase hex characters. The
// compressed "::" form is not accepted.
type IPv6Address struct {
	groups [8][groupLen]byte
}

// IPv6FromGroups trims and uppercases each of exactly eight groups; every
// group must then be four hex characters.
func IPv6FromGroups(groups []string) (IPv6Address, error) {
	if len(groups) != 8 {
		return IPv6Address{}, fmt.Errorf("%w: ipv6 needs 8 groups, got %d", ErrInvalidAddress, len(groups))
	}
	var out IPv6Address
	for i, raw := range groups {
		g := strings.ToUpper(strings.TrimSpace(raw))
		if len(g) != groupLen {
			return IPv6Address{}, fmt.Errorf("%w: group %d %q must be %d characters", ErrInvalidAddress, i, raw, groupLen)
		}
		for j := 0; j < groupLen; j++ {
			if !isUpperHex(g[j]) {
				return IPv6Address{}, fmt.Errorf("%w: group %d %q is not hexadecimal", ErrInvalidAddress, i, raw)
			}
			out.groups[i][j] = g[j]
		}
	}
	return out, nil
}

func ParseIPv6(s string) (IPv6Address, error) {
	return IPv6FromGroups(strings.Split(strings.TrimSpace(s), ":"))
}

func (a IPv6Address) Groups() [8]string {
	var out [8]string
	for i := range a.groups {
		out[i] = string(a.groups[i][:])
	}
	return out
}

// Hextets returns the numeric value of each group.
func (a IPv6Address) Hextets() [8]uint16 {
	var out [8]uint16
	for i := range a.groups {
		v, _ := strconv.ParseUint(string(a.groups[i][:]), 16, 16)
		out[i] = uint16(v)
	}
	return out
}

func (a IPv6Address) String() string {
	g := a.Groups()
	return strings.Join(g[:], ":")
}

func (a IPv6Address) Family() Family {
	return FamilyIPv6
}

func (a IPv6Address) IP() netip.Addr {
	var raw [16]byte
	for i, h := range a.Hextets() {
		raw[2*i] = byte(h >> 8)
		raw[2*i+1] = byte(h)
	}
	return netip.AddrFrom16(raw)
}

func (a IPv6Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *IPv6Address) UnmarshalText(text []byte) error {
	parsed, err := ParseIPv6(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func isUpperHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}
