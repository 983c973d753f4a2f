package netaddr

import (
	"errors"
	"reflect"
	"testing"

	"lukechampine.com/uint128"
)

func TestParseV4(t *testing.T) {
	addr, err := Parse("10.1.2.3", V4)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got, want := addr.Int(), uint128.From64(0x0a010203); got != want {
		t.Fatalf("Int returned %s, want %s", got, want)
	}
	if got := addr.Groups(); !reflect.DeepEqual(got, []string{"10", "1", "2", "3"}) {
		t.Fatalf("Groups returned %v", got)
	}
	if addr.String() != "10.1.2.3" {
		t.Fatalf("String returned %q", addr.String())
	}
}

func TestParseV6ExpandsGroups(t *testing.T) {
	addr, err := Parse("2001:DB8::1", V6)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := []string{"2001", "db8", "0", "0", "0", "0", "0", "1"}
	if got := addr.Groups(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Groups returned %v, want %v", got, want)
	}
	if addr.String() != "2001:db8:0:0:0:0:0:1" {
		t.Fatalf("String returned %q", addr.String())
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		text    string
		version Version
	}{
		{"10.1.2", V4},
		{"10.1.2.256", V4},
		{"10.1..3", V4},
		{"a.b.c.d", V4},
		{"2001:db8::1", V4},
		{"10.1.2.3", V6},
		{"2001:db8:::1", V6},
		{"", V6},
		{"10.0.0.1", Version(5)},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.text, tc.version); !errors.Is(err, ErrMalformedAddress) {
			t.Fatalf("Parse(%q, %s) error = %v, want ErrMalformedAddress", tc.text, tc.version, err)
		}
	}
}

func TestGroupsAndIntAreInverse(t *testing.T) {
	for _, text := range []string{"0.0.0.0", "255.255.255.255", "192.0.2.77"} {
		addr, err := Parse(text, V4)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		back, err := FromGroups(V4, addr.Groups())
		if err != nil || back != addr {
			t.Fatalf("FromGroups(%v) = %v, %v; want %v", addr.Groups(), back, err, addr)
		}
		fromInt, err := FromInt(V4, addr.Int())
		if err != nil || fromInt != addr {
			t.Fatalf("FromInt(%s) = %v, %v; want %v", addr.Int(), fromInt, err, addr)
		}
	}
	for _, text := range []string{"::", "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff", "2001:db8:1:2:3:4:5:6"} {
		addr, err := Parse(text, V6)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		back, err := FromGroups(V6, addr.Groups())
		if err != nil || back != addr {
			t.Fatalf("FromGroups(%v) = %v, %v; want %v", addr.Groups(), back, err, addr)
		}
		if addr.Addr().String() != mustAddr(t, text).Addr().String() {
			t.Fatalf("Addr round trip mismatch for %q", text)
		}
	}
}

func TestFromIntRejectsWideIPv4(t *testing.T) {
	if _, err := FromInt(V4, uint128.From64(1<<32)); !errors.Is(err, ErrMalformedAddress) {
		t.Fatalf("FromInt error = %v, want ErrMalformedAddress", err)
	}
}

func mustAddr(t *testing.T, text string) Address {
	t.Helper()
	addr, err := ParseAny(text)
	if err != nil {
		t.Fatalf("ParseAny(%q): %v", text, err)
	}
	return addr
}
