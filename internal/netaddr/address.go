package netaddr

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"lukechampine.com/uint128"
)

type Version uint8

const (
	V4 Version = 4
	V6 Version = 6
)

func (v Version) String() string {
	switch v {
	case V4:
		return "ipv4"
	case V6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// GroupCount is the number of textual groups of an address of this version.
func (v Version) GroupCount() int {
	if v == V6 {
		return 8
	}
	return 4
}

// Separator joins the textual groups of an address of this version.
func (v Version) Separator() string {
	if v == V6 {
		return ":"
	}
	return "."
}

var (
	ErrMalformedAddress = errors.New("malformed address")
	ErrVersionMismatch  = errors.New("address version mismatch")
	ErrInvertedRange    = errors.New("inverted range")
)

// Address is an IPv4 or IPv6 address held as a 128-bit integer. IPv4 values
// only use the low 32 bits.
type Address struct {
	version Version
	n       uint128.Uint128
}

// Parse reads text as an address of the given version.
func Parse(text string, version Version) (Address, error) {
	text = strings.TrimSpace(text)
	switch version {
	case V4:
		return parseV4(text)
	case V6:
		return parseV6(text)
	default:
		return Address{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedAddress, version)
	}
}

// ParseAny detects the version from the text.
func ParseAny(text string) (Address, error) {
	if strings.Contains(text, ":") {
		return Parse(text, V6)
	}
	return Parse(text, V4)
}

func parseV4(text string) (Address, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return Address{}, fmt.Errorf("%w: %q is not four octets", ErrMalformedAddress, text)
	}
	var v uint64
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return Address{}, fmt.Errorf("%w: bad octet %q in %q", ErrMalformedAddress, part, text)
		}
		octet, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return Address{}, fmt.Errorf("%w: bad octet %q in %q", ErrMalformedAddress, part, text)
		}
		v = v<<8 | octet
	}
	return Address{version: V4, n: uint128.From64(v)}, nil
}

func parseV6(text string) (Address, error) {
	addr, err := netip.ParseAddr(text)
	if err != nil || !addr.Is6() || addr.Zone() != "" {
		return Address{}, fmt.Errorf("%w: %q is not an ipv6 address", ErrMalformedAddress, text)
	}
	raw := addr.As16()
	return Address{version: V6, n: uint128.FromBytesBE(raw[:])}, nil
}

// FromInt builds an address from its integer form. IPv4 values above 32 bits
// are rejected.
func FromInt(version Version, n uint128.Uint128) (Address, error) {
	switch version {
	case V4:
		if n.Hi != 0 || n.Lo > 0xffffffff {
			return Address{}, fmt.Errorf("%w: %s overflows ipv4", ErrMalformedAddress, n)
		}
	case V6:
	default:
		return Address{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedAddress, version)
	}
	return Address{version: version, n: n}, nil
}

// FromGroups is the inverse of Groups.
func FromGroups(version Version, groups []string) (Address, error) {
	if len(groups) != version.GroupCount() {
		return Address{}, fmt.Errorf("%w: want %d groups, got %d", ErrMalformedAddress, version.GroupCount(), len(groups))
	}
	if version == V4 {
		return parseV4(strings.Join(groups, "."))
	}
	var n uint128.Uint128
	for _, g := range groups {
		h, err := strconv.ParseUint(g, 16, 16)
		if err != nil {
			return Address{}, fmt.Errorf("%w: bad hextet %q", ErrMalformedAddress, g)
		}
		n = n.Lsh(16).Or64(h)
	}
	return Address{version: V6, n: n}, nil
}

func (a Address) Version() Version { return a.version }

func (a Address) Int() uint128.Uint128 { return a.n }

func (a Address) IsValid() bool { return a.version == V4 || a.version == V6 }

// Groups returns the fully expanded textual groups: decimal octets for IPv4,
// lowercase hextets without leading zeros for IPv6.
func (a Address) Groups() []string {
	if a.version == V4 {
		v := a.n.Lo
		return []string{
			strconv.FormatUint(v>>24&0xff, 10),
			strconv.FormatUint(v>>16&0xff, 10),
			strconv.FormatUint(v>>8&0xff, 10),
			strconv.FormatUint(v&0xff, 10),
		}
	}
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		word := a.n.Rsh(uint(112-16*i)).Lo & 0xffff
		groups[i] = strconv.FormatUint(word, 16)
	}
	return groups
}

// Octets returns the numeric group values.
func (a Address) Octets() []uint64 {
	if a.version == V4 {
		v := a.n.Lo
		return []uint64{v >> 24 & 0xff, v >> 16 & 0xff, v >> 8 & 0xff, v & 0xff}
	}
	out := make([]uint64, 8)
	for i := range out {
		out[i] = a.n.Rsh(uint(112-16*i)).Lo & 0xffff
	}
	return out
}

// String joins the expanded groups.
func (a Address) String() string {
	if !a.IsValid() {
		return "invalid"
	}
	return strings.Join(a.Groups(), a.version.Separator())
}

func (a Address) Compare(b Address) int {
	return a.n.Cmp(b.n)
}

func (a Address) Addr() netip.Addr {
	if a.version == V4 {
		v := uint32(a.n.Lo)
		return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	}
	var raw [16]byte
	a.n.PutBytesBE(raw[:])
	return netip.AddrFrom16(raw)
}
