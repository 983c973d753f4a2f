// Package lookup answers "which ranges contain this address" from the index
// written by the ingestor. Bucket membership only nominates candidates; each
// candidate is checked against the endpoints encoded in its range id.
package lookup

import (
	"context"
	"fmt"
	"sort"

	"whoisindex/internal/decompose"
	"whoisindex/internal/netaddr"
	"whoisindex/internal/store"
)

type Match struct {
	ID         netaddr.RangeID
	Range      netaddr.Range
	NetworkKey string
}

type Resolver struct {
	reader store.Reader
}

func NewResolver(reader store.Reader) *Resolver {
	return &Resolver{reader: reader}
}

// Lookup returns the ranges containing the address text, narrowest first.
func (r *Resolver) Lookup(ctx context.Context, text string) ([]Match, error) {
	addr, err := netaddr.ParseAny(text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var matches []Match
	for _, bucket := range decompose.Candidates(addr) {
		ids, err := r.reader.Members(ctx, string(bucket))
		if err != nil {
			return nil, fmt.Errorf("read bucket %q: %w", bucket, err)
		}
		for _, raw := range ids {
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}

			id := netaddr.RangeID(raw)
			// Ids of the other address family share bucket names such as "0".
			// Read with the wrong version they either fail to parse or decompose
			// to buckets other than the one they were found in.
			rng, err := netaddr.ParseRangeID(id, addr.Version())
			if err != nil || !decompose.Indexes(rng, bucket) {
				continue
			}
			if !rng.Contains(addr) {
				continue
			}
			payload, _, err := r.reader.Payload(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("read payload %s: %w", id, err)
			}
			rng.NetworkKey = payload
			matches = append(matches, Match{ID: id, Range: rng, NetworkKey: payload})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if c := matches[i].Range.Size().Cmp(matches[j].Range.Size()); c != 0 {
			return c < 0
		}
		return matches[i].Range.First.Compare(matches[j].Range.First) < 0
	})
	return matches, nil
}
