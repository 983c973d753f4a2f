package netaddr

import (
	"fmt"
	"net/netip"
	"strings"

	"lukechampine.com/uint128"
)

// RangeID identifies a range by its two endpoints, "<first>_<last>" in decimal.
type RangeID string

// Range is a closed address interval tagged with the key of the record it came from.
type Range struct {
	First      Address
	Last       Address
	NetworkKey string
}

// NewRange validates that both endpoints share a version and are ordered.
func NewRange(first, last Address, networkKey string) (Range, error) {
	if !first.IsValid() || !last.IsValid() {
		return Range{}, fmt.Errorf("%w: invalid endpoint", ErrMalformedAddress)
	}
	if first.version != last.version {
		return Range{}, fmt.Errorf("%w: %s - %s", ErrVersionMismatch, first, last)
	}
	if first.Compare(last) > 0 {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvertedRange, first, last)
	}
	return Range{First: first, Last: last, NetworkKey: networkKey}, nil
}

func (r Range) Version() Version { return r.First.version }

func (r Range) ID() RangeID {
	return RangeID(r.First.n.String() + "_" + r.Last.n.String())
}

// Validate reports the same errors NewRange would for r.
func (r Range) Validate() error {
	_, err := NewRange(r.First, r.Last, r.NetworkKey)
	return err
}

func (r Range) Contains(a Address) bool {
	if a.version != r.First.version {
		return false
	}
	return r.First.Compare(a) <= 0 && a.Compare(r.Last) <= 0
}

// Size returns last-first, the number of addresses minus one.
func (r Range) Size() uint128.Uint128 {
	return r.Last.n.Sub(r.First.n)
}

func (r Range) String() string {
	return r.First.String() + " - " + r.Last.String()
}

// ParseRangeID recovers the endpoints encoded in id.
func ParseRangeID(id RangeID, version Version) (Range, error) {
	lo, hi, ok := strings.Cut(string(id), "_")
	if !ok {
		return Range{}, fmt.Errorf("%w: range id %q", ErrMalformedAddress, id)
	}
	first, err := parseIntEndpoint(lo, version)
	if err != nil {
		return Range{}, err
	}
	last, err := parseIntEndpoint(hi, version)
	if err != nil {
		return Range{}, err
	}
	return NewRange(first, last, "")
}

func parseIntEndpoint(text string, version Version) (Address, error) {
	n, err := uint128.FromString(text)
	if err != nil {
		return Address{}, fmt.Errorf("%w: range id endpoint %q", ErrMalformedAddress, text)
	}
	return FromInt(version, n)
}

// ParseInetnum parses the range notations found in registry dumps:
// "192.0.2.0 - 192.0.2.255" and CIDR prefixes such as "2001:db8::/32".
func ParseInetnum(text, networkKey string) (Range, error) {
	text = strings.TrimSpace(text)
	if lo, hi, ok := strings.Cut(text, "-"); ok {
		first, err := ParseAny(strings.TrimSpace(lo))
		if err != nil {
			return Range{}, err
		}
		last, err := Parse(strings.TrimSpace(hi), first.version)
		if err != nil {
			return Range{}, err
		}
		return NewRange(first, last, networkKey)
	}
	if strings.Contains(text, "/") {
		return parsePrefix(text, networkKey)
	}
	single, err := ParseAny(text)
	if err != nil {
		return Range{}, err
	}
	return NewRange(single, single, networkKey)
}

func parsePrefix(text, networkKey string) (Range, error) {
	prefix, err := netip.ParsePrefix(text)
	if err != nil {
		return Range{}, fmt.Errorf("%w: prefix %q", ErrMalformedAddress, text)
	}
	prefix = prefix.Masked()
	version := V6
	width := 128
	if prefix.Addr().Is4() {
		version = V4
		width = 32
	}
	first, err := ParseAny(prefix.Addr().String())
	if err != nil {
		return Range{}, err
	}
	hostBits := uint(width - prefix.Bits())
	mask := uint128.Max
	if hostBits < 128 {
		mask = uint128.From64(1).Lsh(hostBits).Sub64(1)
	}
	last, err := FromInt(version, first.n.Or(mask))
	if err != nil {
		return Range{}, err
	}
	return NewRange(first, last, networkKey)
}
