// Package decompose turns an address range into the prefix buckets under
// which the range is indexed.
//
// A bucket is a group-aligned partial address: 1-3 leading octets for IPv4,
// or a run of leading hextets for IPv6. For every address inside a range at
// least one bucket of that range is a group prefix of the address, so a
// lookup only has to read the buckets returned by Candidates.
package decompose

import (
	"strconv"
	"strings"

	"whoisindex/internal/netaddr"
)

type Bucket string

const (
	maxOctet = 255
	// MaxV4Buckets bounds the output of Decompose for any IPv4 range.
	MaxV4Buckets = 3 * 256
)

// Decompose returns the ordered, duplicate-free set of buckets covering r.
func Decompose(r netaddr.Range) ([]Bucket, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Version() == netaddr.V4 {
		return decomposeV4(r.First.Octets(), r.Last.Octets()), nil
	}
	return decomposeV6(r.First.Groups(), r.Last.Groups()), nil
}

func decomposeV4(first, last []uint64) []Bucket {
	var out []Bucket
	switch {
	case first[0] != last[0]:
		out = appendSpan(out, "", first[0]+1, last[0]-1)
		out = appendSpan(out, prefix(first[:1]), first[1], maxOctet)
		out = appendSpan(out, prefix(last[:1]), 0, last[1])
	case first[1] == 0 && last[1] == maxOctet:
		out = append(out, Bucket(join(first[:1])))
	case first[1] != last[1]:
		out = appendSpan(out, prefix(first[:1]), first[1]+1, last[1]-1)
		out = appendSpan(out, prefix(first[:2]), first[2], maxOctet)
		out = appendSpan(out, prefix(last[:2]), 0, last[2])
	case first[2] == 0 && last[2] == maxOctet:
		out = append(out, Bucket(join(first[:2])))
	case first[2] != last[2]:
		// The fourth octet is assumed to span 0-255 in every block; unaligned
		// ranges are over-covered, never under-covered.
		out = appendSpan(out, prefix(first[:2]), first[2], last[2])
	default:
		out = append(out, Bucket(join(first[:3])))
	}
	return out
}

// decomposeV6 emits the shared leading hextet run as a single bucket, or one
// bucket per first-hextet value when the endpoints share nothing. It never
// expands a second level.
func decomposeV6(first, last []string) []Bucket {
	shared := 0
	for shared < len(first)-1 && first[shared] == last[shared] {
		shared++
	}
	if shared > 0 {
		return []Bucket{Bucket(strings.Join(first[:shared], ":"))}
	}

	lo, _ := strconv.ParseUint(first[0], 16, 16)
	hi, _ := strconv.ParseUint(last[0], 16, 16)
	out := make([]Bucket, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		out = append(out, Bucket(strconv.FormatUint(v, 16)))
	}
	return out
}

// appendSpan appends prefix+v for lo <= v <= hi. An empty span (lo > hi,
// including the wrapped hi of 0-1) appends nothing.
func appendSpan(out []Bucket, pfx string, lo, hi uint64) []Bucket {
	if hi > maxOctet || lo > hi {
		return out
	}
	for v := lo; v <= hi; v++ {
		out = append(out, Bucket(pfx+strconv.FormatUint(v, 10)))
	}
	return out
}

func prefix(octets []uint64) string {
	return join(octets) + "."
}

func join(octets []uint64) string {
	parts := make([]string, len(octets))
	for i, o := range octets {
		parts[i] = strconv.FormatUint(o, 10)
	}
	return strings.Join(parts, ".")
}

// Candidates lists the buckets a lookup for addr has to read: every
// group-aligned prefix that Decompose can produce for a range containing addr.
func Candidates(addr netaddr.Address) []Bucket {
	groups := addr.Groups()
	sep := addr.Version().Separator()
	out := make([]Bucket, 0, len(groups)-1)
	for depth := 1; depth < len(groups); depth++ {
		out = append(out, Bucket(strings.Join(groups[:depth], sep)))
	}
	return out
}

// Indexes reports whether bucket is one of the buckets r is stored under.
func Indexes(r netaddr.Range, bucket Bucket) bool {
	buckets, err := Decompose(r)
	if err != nil {
		return false
	}
	for _, b := range buckets {
		if b == bucket {
			return true
		}
	}
	return false
}
