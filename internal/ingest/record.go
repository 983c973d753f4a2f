package ingest

import (
	"context"
	"sort"

	"whoisindex/internal/dump"
	"whoisindex/internal/store"
)

// Record is a parsed dump entry.
type Record struct {
	Pattern string
	Key     string
	Attrs   dump.Attributes
	Line    int
}

func RecordFromEntry(e dump.Entry) Record {
	attrs := dump.ParseAttributes(e.Text)
	return Record{Pattern: e.Pattern, Key: attrs.Key(), Attrs: attrs, Line: e.Line}
}

// ListField stores every value of Attr in the set "<record key><Flag>".
type ListField struct {
	Attr string
	Flag string
}

// Schema describes how entries of one key pattern are indexed.
type Schema struct {
	// RangeAttr names the attribute holding the address range. Entries without
	// a range attribute only contribute list fields and helper keys.
	RangeAttr string
	// NetworkKeyAttr names the attribute stored as the range payload. The
	// record key is used when it is empty or missing.
	NetworkKeyAttr string
	Lists          []ListField
}

// HelperKeyPusher writes the source-specific auxiliary keys of a record, such
// as reverse lookups from handles to the record key. Every source supplies one.
type HelperKeyPusher interface {
	PushHelperKeys(ctx context.Context, w store.Store, pattern, recordKey string, rec Record) error
}

// HelperKeyFunc adapts a function to HelperKeyPusher.
type HelperKeyFunc func(ctx context.Context, w store.Store, pattern, recordKey string, rec Record) error

func (f HelperKeyFunc) PushHelperKeys(ctx context.Context, w store.Store, pattern, recordKey string, rec Record) error {
	return f(ctx, w, pattern, recordKey, rec)
}

// Source is a registry dump flavour: the patterns it indexes and its helper
// key hook.
type Source struct {
	Name    string
	Schemas map[string]Schema
	Helpers HelperKeyPusher
}

// Patterns lists the configured key patterns in sorted order.
func (s Source) Patterns() []string {
	out := make([]string, 0, len(s.Schemas))
	for p := range s.Schemas {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// UniqueValues drops empty values and duplicates. Order is not preserved.
func UniqueValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
