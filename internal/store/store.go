// Package store holds the index entry sinks: bucket sets of range ids, range
// payloads and the helper key sets pushed by source variants.
package store

import (
	"context"
	"errors"

	"whoisindex/internal/decompose"
	"whoisindex/internal/netaddr"
)

var ErrStoreUnavailable = errors.New("store unavailable")

// Store receives index writes. Every operation is idempotent, so a batch that
// failed halfway can be replayed.
type Store interface {
	AddToBucket(ctx context.Context, bucket decompose.Bucket, id netaddr.RangeID) error
	SetPayload(ctx context.Context, id netaddr.RangeID, value string) error
	AddToSet(ctx context.Context, key, member string) error
	// Flush pushes buffered writes to the backend. Unbuffered stores return nil.
	Flush(ctx context.Context) error
}

// Reader is the read side used by lookups.
type Reader interface {
	Members(ctx context.Context, key string) ([]string, error)
	Payload(ctx context.Context, id netaddr.RangeID) (string, bool, error)
}
