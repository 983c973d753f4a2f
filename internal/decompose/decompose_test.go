package decompose

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"lukechampine.com/uint128"

	"whoisindex/internal/netaddr"
)

func mustRange(t *testing.T, first, last string) netaddr.Range {
	t.Helper()
	f, err := netaddr.ParseAny(first)
	if err != nil {
		t.Fatalf("parse %q: %v", first, err)
	}
	l, err := netaddr.ParseAny(last)
	if err != nil {
		t.Fatalf("parse %q: %v", last, err)
	}
	r, err := netaddr.NewRange(f, l, "net")
	if err != nil {
		t.Fatalf("NewRange(%s, %s): %v", first, last, err)
	}
	return r
}

func mustDecompose(t *testing.T, r netaddr.Range) []Bucket {
	t.Helper()
	buckets, err := Decompose(r)
	if err != nil {
		t.Fatalf("Decompose(%s): %v", r, err)
	}
	return buckets
}

func TestDecomposeAlignedBlocks(t *testing.T) {
	cases := []struct {
		first, last string
		want        []Bucket
	}{
		{"10.0.0.0", "10.255.255.255", []Bucket{"10"}},
		{"10.1.0.0", "10.1.255.255", []Bucket{"10.1"}},
		{"10.1.2.0", "10.1.2.255", []Bucket{"10.1.2"}},
		{"10.1.2.7", "10.1.2.9", []Bucket{"10.1.2"}},
		{"10.1.2.7", "10.1.2.7", []Bucket{"10.1.2"}},
		{"10.1.2.0", "10.1.4.255", []Bucket{"10.1.2", "10.1.3", "10.1.4"}},
		{"2001:db8::", "2001:db8:ffff:ffff:ffff:ffff:ffff:ffff", []Bucket{"2001:db8"}},
		{"2001:db8::1", "2001:db8::1", []Bucket{"2001:db8:0:0:0:0:0"}},
		{"2001::", "2003:ffff::", []Bucket{"2001", "2002", "2003"}},
		{"fe::", "101::", []Bucket{"fe", "ff", "100", "101"}},
	}
	for _, tc := range cases {
		got := mustDecompose(t, mustRange(t, tc.first, tc.last))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Decompose(%s - %s) = %v, want %v", tc.first, tc.last, got, tc.want)
		}
	}
}

func TestDecomposeFirstOctetDiffers(t *testing.T) {
	got := mustDecompose(t, mustRange(t, "10.0.5.0", "11.0.3.0"))

	// No whole /8 lies strictly between 10 and 11; the low boundary block
	// expands 10.0 through 10.255 and the high one covers 11.0 only.
	want := make([]Bucket, 0, 257)
	for v := 0; v <= 255; v++ {
		want = append(want, Bucket(fmt.Sprintf("10.%d", v)))
	}
	want = append(want, "11.0")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decompose returned %d buckets %v, want %v", len(got), got, want)
	}
}

func TestDecomposeBetweenBuckets(t *testing.T) {
	got := mustDecompose(t, mustRange(t, "10.250.0.0", "13.2.0.0"))
	want := []Bucket{"11", "12"}
	for v := 250; v <= 255; v++ {
		want = append(want, Bucket(fmt.Sprintf("10.%d", v)))
	}
	want = append(want, "13.0", "13.1", "13.2")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decompose returned %v, want %v", got, want)
	}
}

func TestDecomposeSecondOctetDiffers(t *testing.T) {
	got := mustDecompose(t, mustRange(t, "10.1.254.0", "10.4.1.255"))
	want := []Bucket{"10.2", "10.3", "10.1.254", "10.1.255", "10.4.0", "10.4.1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decompose returned %v, want %v", got, want)
	}
}

func TestDecomposeInvertedRange(t *testing.T) {
	first, _ := netaddr.ParseAny("10.0.0.2")
	last, _ := netaddr.ParseAny("10.0.0.1")
	_, err := Decompose(netaddr.Range{First: first, Last: last})
	if !errors.Is(err, netaddr.ErrInvertedRange) {
		t.Fatalf("Decompose error = %v, want ErrInvertedRange", err)
	}
}

func TestDecomposeIsBoundedAndDeterministic(t *testing.T) {
	worst := mustRange(t, "0.0.0.0", "255.255.255.255")
	if got := mustDecompose(t, worst); len(got) != 254+256+256 || len(got) > MaxV4Buckets {
		t.Fatalf("Decompose returned %d buckets, bound is %d", len(got), MaxV4Buckets)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		r := randomV4Range(rng)
		a := mustDecompose(t, r)
		if len(a) > MaxV4Buckets {
			t.Fatalf("Decompose(%s) returned %d buckets", r, len(a))
		}
		b := mustDecompose(t, r)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Decompose(%s) is not deterministic", r)
		}
		seen := make(map[Bucket]struct{}, len(a))
		for _, bucket := range a {
			if _, dup := seen[bucket]; dup {
				t.Fatalf("Decompose(%s) returned duplicate bucket %q", r, bucket)
			}
			seen[bucket] = struct{}{}
		}
	}

	v6 := mustRange(t, "2001:db8::", "2001:db9::")
	if got := mustDecompose(t, v6); len(got) != 1 {
		t.Fatalf("Decompose(%s) returned %v, want exactly one bucket", v6, got)
	}
	wide := mustRange(t, "::", "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")
	if got := mustDecompose(t, wide); len(got) != 65536 {
		t.Fatalf("Decompose(%s) returned %d buckets, want 65536", wide, len(got))
	}
}

func TestDecomposeIsSound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 3000; i++ {
		r := randomV4Range(rng)
		assertSound(t, rng, r)
	}
	for i := 0; i < 1000; i++ {
		r := randomV6Range(rng)
		assertSound(t, rng, r)
	}
}

func TestCandidates(t *testing.T) {
	addr, _ := netaddr.ParseAny("10.1.2.3")
	want := []Bucket{"10", "10.1", "10.1.2"}
	if got := Candidates(addr); !reflect.DeepEqual(got, want) {
		t.Fatalf("Candidates returned %v, want %v", got, want)
	}

	v6, _ := netaddr.ParseAny("2001:db8::1")
	if got := Candidates(v6); len(got) != 7 || got[0] != "2001" || got[1] != "2001:db8" {
		t.Fatalf("Candidates returned %v", got)
	}
}

func TestIndexes(t *testing.T) {
	r := mustRange(t, "10.1.254.0", "10.4.1.255")
	for _, b := range []Bucket{"10.2", "10.1.255", "10.4.0"} {
		if !Indexes(r, b) {
			t.Fatalf("Indexes(%s, %q) = false", r, b)
		}
	}
	for _, b := range []Bucket{"10", "10.1", "10.4.2", "10.10"} {
		if Indexes(r, b) {
			t.Fatalf("Indexes(%s, %q) = true", r, b)
		}
	}

	// The same integers read as an ipv6 range live under a different bucket.
	v4 := mustRange(t, "0.0.0.0", "0.255.255.255")
	v6 := mustRange(t, "::", "::ff:ffff")
	if !Indexes(v4, "0") || Indexes(v6, "0") {
		t.Fatalf("bucket 0 must index only the ipv4 range")
	}
}

func assertSound(t *testing.T, rng *rand.Rand, r netaddr.Range) {
	t.Helper()
	buckets := mustDecompose(t, r)
	set := make(map[Bucket]struct{}, len(buckets))
	for _, b := range buckets {
		set[b] = struct{}{}
	}
	samples := []netaddr.Address{r.First, r.Last, randomWithin(t, rng, r)}
	for _, addr := range samples {
		found := false
		for _, c := range Candidates(addr) {
			if _, ok := set[c]; ok {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no bucket of %s covers %s (buckets %v)", r, addr, buckets)
		}
	}
}

func randomV4Range(rng *rand.Rand) netaddr.Range {
	a := uint64(rng.Uint32())
	b := uint64(rng.Uint32())
	// Bias toward registry-shaped ranges sharing leading octets.
	switch rng.Intn(3) {
	case 0:
		b = a&^0xffff | b&0xffff
	case 1:
		b = a&^0xff | b&0xff
	}
	if a > b {
		a, b = b, a
	}
	first, _ := netaddr.FromInt(netaddr.V4, uint128.From64(a))
	last, _ := netaddr.FromInt(netaddr.V4, uint128.From64(b))
	return netaddr.Range{First: first, Last: last}
}

func randomV6Range(rng *rand.Rand) netaddr.Range {
	a := uint128.New(rng.Uint64(), rng.Uint64())
	b := uint128.New(rng.Uint64(), rng.Uint64())
	if rng.Intn(2) == 0 {
		b = uint128.New(b.Lo, a.Hi&^0xffffffff|b.Hi&0xffffffff)
	}
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	first, _ := netaddr.FromInt(netaddr.V6, a)
	last, _ := netaddr.FromInt(netaddr.V6, b)
	return netaddr.Range{First: first, Last: last}
}

func randomWithin(t *testing.T, rng *rand.Rand, r netaddr.Range) netaddr.Address {
	t.Helper()
	span := r.Size()
	var offset uint128.Uint128
	switch {
	case span.Hi == 0 && span.Lo == ^uint64(0):
		offset = uint128.From64(rng.Uint64())
	case span.Hi == 0:
		offset = uint128.From64(rng.Uint64() % (span.Lo + 1))
	default:
		offset = uint128.New(rng.Uint64(), rng.Uint64()%span.Hi)
	}
	addr, err := netaddr.FromInt(r.Version(), r.First.Int().Add(offset))
	if err != nil {
		t.Fatalf("FromInt: %v", err)
	}
	return addr
}
