// Package ingest feeds parsed dump records into the entry store: list fields
// become helper sets, address ranges are decomposed into buckets.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"whoisindex/internal/batch"
	"whoisindex/internal/decompose"
	"whoisindex/internal/dump"
	"whoisindex/internal/netaddr"
	"whoisindex/internal/store"
)

var ErrNoHelperKeys = errors.New("source has no helper key pusher")

type Stats struct {
	// Consumed counts every record that advanced the batch, skipped ones included.
	Consumed     int
	Records      int
	Ranges       int
	Buckets      int
	SetMembers   int
	Skipped      int
	Unrecognized int
	Flushes      int
	Duration     time.Duration
}

type Ingestor struct {
	source Source
	store  store.Store
	batch  *batch.Controller
	stats  Stats
}

// New builds an ingestor for src writing into st, flushing every threshold
// records.
func New(src Source, st store.Store, threshold int) (*Ingestor, error) {
	if src.Helpers == nil {
		return nil, fmt.Errorf("ingest %s: %w", src.Name, ErrNoHelperKeys)
	}
	if st == nil {
		return nil, errors.New("ingest: store cannot be nil")
	}
	return &Ingestor{
		source: src,
		store:  st,
		batch:  batch.NewController(st, threshold),
	}, nil
}

func (in *Ingestor) Stats() Stats {
	s := in.stats
	s.Flushes = in.batch.Flushes()
	s.Consumed = in.batch.Total()
	return s
}

// Ingest indexes one record. Records with an unknown pattern are ignored.
// Address errors are returned before anything is written for the record.
func (in *Ingestor) Ingest(ctx context.Context, rec Record) error {
	schema, ok := in.source.Schemas[rec.Pattern]
	if !ok {
		in.stats.Unrecognized++
		return nil
	}

	var (
		rng      netaddr.Range
		hasRange bool
	)
	if schema.RangeAttr != "" {
		text := rec.Attrs.Get(schema.RangeAttr)
		if text == "" {
			text = rec.Key
		}
		parsed, err := netaddr.ParseInetnum(text, networkKey(schema, rec))
		if err != nil {
			in.stats.Skipped++
			if bErr := in.batch.Record(ctx); bErr != nil {
				return bErr
			}
			return fmt.Errorf("record %q at line %d: %w", rec.Key, rec.Line, err)
		}
		rng, hasRange = parsed, true
	}

	for _, field := range schema.Lists {
		if err := in.PushList(ctx, rec.Attrs.All(field.Attr), rec.Key, field.Flag); err != nil {
			return err
		}
	}

	if hasRange {
		if _, err := in.PushRange(ctx, rng); err != nil {
			return err
		}
	}

	if err := in.source.Helpers.PushHelperKeys(ctx, in.store, rec.Pattern, rec.Key, rec); err != nil {
		return fmt.Errorf("helper keys for %q: %w", rec.Key, err)
	}

	in.stats.Records++
	return in.batch.Record(ctx)
}

func networkKey(schema Schema, rec Record) string {
	if schema.NetworkKeyAttr != "" {
		if v := rec.Attrs.Get(schema.NetworkKeyAttr); v != "" {
			return v
		}
	}
	return rec.Key
}

// PushList stores the unique, non-empty values in the set recordKey+flag.
func (in *Ingestor) PushList(ctx context.Context, values []string, recordKey, flag string) error {
	mainKey := recordKey + flag
	for _, v := range UniqueValues(values) {
		if err := in.store.AddToSet(ctx, mainKey, v); err != nil {
			return fmt.Errorf("add %q to %q: %w", v, mainKey, err)
		}
		in.stats.SetMembers++
	}
	return nil
}

// PushRange adds the range id to every bucket of r and stores the network key
// under the id.
func (in *Ingestor) PushRange(ctx context.Context, r netaddr.Range) ([]decompose.Bucket, error) {
	buckets, err := decompose.Decompose(r)
	if err != nil {
		return nil, err
	}
	id := r.ID()
	for _, b := range buckets {
		if err := in.store.AddToBucket(ctx, b, id); err != nil {
			return nil, fmt.Errorf("add %s to bucket %q: %w", id, b, err)
		}
	}
	if err := in.store.SetPayload(ctx, id, r.NetworkKey); err != nil {
		return nil, fmt.Errorf("set payload %s: %w", id, err)
	}
	in.stats.Ranges++
	in.stats.Buckets += len(buckets)
	return buckets, nil
}

// IsRecordError reports whether err only invalidates the record it came from.
func IsRecordError(err error) bool {
	return errors.Is(err, netaddr.ErrMalformedAddress) ||
		errors.Is(err, netaddr.ErrInvertedRange) ||
		errors.Is(err, netaddr.ErrVersionMismatch)
}

// Run consumes every entry of sc in order and finishes with a flush. Records
// with bad addresses are logged and skipped; any other error stops the run.
func (in *Ingestor) Run(ctx context.Context, sc *dump.Scanner) (Stats, error) {
	start := time.Now()

	for sc.Next() {
		if err := ctx.Err(); err != nil {
			return in.Stats(), err
		}
		rec := RecordFromEntry(sc.Entry())
		if err := in.Ingest(ctx, rec); err != nil {
			if IsRecordError(err) {
				log.Warn("Skipping record", "source", in.source.Name, "error", err)
				continue
			}
			return in.Stats(), err
		}
	}
	if err := sc.Err(); err != nil {
		return in.Stats(), fmt.Errorf("read dump: %w", err)
	}

	if err := in.batch.Flush(ctx); err != nil {
		return in.Stats(), err
	}

	in.stats.Unrecognized += sc.Stats().Unrecognized
	stats := in.Stats()
	stats.Duration = time.Since(start)
	log.Info("Ingestion finished",
		"source", in.source.Name,
		"consumed", stats.Consumed,
		"records", stats.Records,
		"ranges", stats.Ranges,
		"buckets", stats.Buckets,
		"skipped", stats.Skipped,
		"flushes", stats.Flushes,
		"duration", stats.Duration,
	)
	return stats, nil
}
