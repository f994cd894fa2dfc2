package address

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	"github.com/danmuck/regis/internal/testutil/testlog"
)

func TestIPv4FromOctets(t *testing.T) {
	testlog.Start(t)
	addr, err := IPv4FromOctets([]int{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("zero address: %v", err)
	}
	if addr.String() != "0.0.0.0" {
		t.Fatalf("unexpected string: %q", addr.String())
	}
	addr, err = IPv4FromOctets([]int{192, 168, 1, 255})
	if err != nil || addr.String() != "192.168.1.255" {
		t.Fatalf("unexpected result %q err=%v", addr.String(), err)
	}

	invalid := [][]int{
		{256, 0, 0, 0},
		{-1, 0, 0, 0},
		{1, 2, 3},
		{1, 2, 3, 4, 5},
		nil,
	}
	for _, octets := range invalid {
		if _, err := IPv4FromOctets(octets); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("%v: expected ErrInvalidAddress, got %v", octets, err)
		}
	}
}

func TestParseIPv4(t *testing.T) {
	testlog.Start(t)
	addr, err := ParseIPv4("10.0.0.1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr.Octets() != [4]uint8{10, 0, 0, 1} {
		t.Fatalf("unexpected octets: %v", addr.Octets())
	}
	if addr.IP() != netip.MustParseAddr("10.0.0.1") {
		t.Fatalf("unexpected netip: %v", addr.IP())
	}
	for _, s := range []string{"10.0.0", "10.0.0.256", "10.0.0.-1", "a.b.c.d", "10..0.1", "10.0.0.1.2", ""} {
		if _, err := ParseIPv4(s); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("%q: expected ErrInvalidAddress, got %v", s, err)
		}
	}
}

func TestIPv6FromGroups(t *testing.T) {
	testlog.Start(t)
	groups := []string{"ab12", "0000", " 00ff ", "FFFF", "1234", "abcd", "0001", "0db8"}
	addr, err := IPv6FromGroups(groups)
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if addr.Groups()[0] != "AB12" || addr.Groups()[2] != "00FF" {
		t.Fatalf("groups not normalized: %v", addr.Groups())
	}
	if addr.String() != "AB12:0000:00FF:FFFF:1234:ABCD:0001:0DB8" {
		t.Fatalf("unexpected string: %q", addr.String())
	}
	if addr.Hextets()[0] != 0xAB12 || addr.Hextets()[7] != 0x0DB8 {
		t.Fatalf("unexpected hextets: %v", addr.Hextets())
	}

	bad := [][]string{
		{"  ab1", "0000", "0000", "0000", "0000", "0000", "0000", "0000"},
		{"ab123", "0000", "0000", "0000", "0000", "0000", "0000", "0000"},
		{"zz12", "0000", "0000", "0000", "0000", "0000", "0000", "0000"},
		{"0000", "0000", "0000", "0000", "0000", "0000", "0000"},
	}
	for _, g := range bad {
		if _, err := IPv6FromGroups(g); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("%q: expected ErrInvalidAddress, got %v", g, err)
		}
	}
}

func TestParseIPv6RejectsCompression(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseIPv6("fe80::1"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected compressed form to be rejected, got %v", err)
	}
	addr, err := ParseIPv6("fe80:0000:0000:0000:0000:0000:0000:0001")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr.IP() != netip.MustParseAddr("fe80::1") {
		t.Fatalf("unexpected netip: %v", addr.IP())
	}
}

func TestParseDispatchesOnFamily(t *testing.T) {
	testlog.Start(t)
	v4, err := Parse(" 127.0.0.1 ")
	if err != nil || v4.Family() != FamilyIPv4 {
		t.Fatalf("v4: %v err=%v", v4, err)
	}
	v6, err := Parse("0000:0000:0000:0000:0000:0000:0000:0001")
	if err != nil || v6.Family() != FamilyIPv6 {
		t.Fatalf("v6: %v err=%v", v6, err)
	}
}

func TestFromIP(t *testing.T) {
	testlog.Start(t)
	addr, err := FromIP(netip.MustParseAddr("::ffff:10.1.2.3"))
	if err != nil || addr.String() != "10.1.2.3" {
		t.Fatalf("mapped v4: %v err=%v", addr, err)
	}
	addr, err = FromIP(netip.MustParseAddr("2001:db8::ff"))
	if err != nil || addr.String() != "2001:0DB8:0000:0000:0000:0000:0000:00FF" {
		t.Fatalf("v6: %v err=%v", addr, err)
	}
	if _, err := FromIP(netip.Addr{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for zero addr, got %v", err)
	}
}

func TestEndpoint(t *testing.T) {
	testlog.Start(t)
	ep, err := ParseEndpoint("10.0.0.1:7000", ClientsPort)
	if err != nil || ep.Port != 7000 || ep.String() != "10.0.0.1:7000" {
		t.Fatalf("host:port: %+v err=%v", ep, err)
	}
	ep, err = ParseEndpoint("10.0.0.1", ClientsPort)
	if err != nil || ep.Port != ClientsPort {
		t.Fatalf("default port: %+v err=%v", ep, err)
	}
	ep, err = ParseEndpoint("[0000:0000:0000:0000:0000:0000:0000:0001]:1027", ClientsPort)
	if err != nil || ep.Port != BroadcastPort {
		t.Fatalf("v6 endpoint: %+v err=%v", ep, err)
	}
	if ep.String() != "[0000:0000:0000:0000:0000:0000:0000:0001]:1027" {
		t.Fatalf("unexpected v6 endpoint string: %q", ep.String())
	}
	if _, err := ParseEndpoint("10.0.0.1:99999", ClientsPort); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected bad port rejection, got %v", err)
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	testlog.Start(t)
	type hostRecord struct {
		V4 IPv4Address `json:"v4"`
		V6 IPv6Address `json:"v6"`
	}
	in := hostRecord{}
	in.V4, _ = ParseIPv4("172.16.0.9")
	in.V6, _ = ParseIPv6("fe80:0000:0000:0000:0000:0000:0000:0001")
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"v4":"172.16.0.9","v6":"FE80:0000:0000:0000:0000:0000:0000:0001"}` {
		t.Fatalf("unexpected json: %s", raw)
	}
	var out hostRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("mismatch: %+v != %+v", out, in)
	}
	if err := json.Unmarshal([]byte(`{"v4":"300.1.1.1"}`), &out); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress from json, got %v", err)
	}
}
