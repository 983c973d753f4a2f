// Package sources defines the registry dump flavours the indexer understands.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"whoisindex/internal/ingest"
	"whoisindex/internal/store"
)

type constructor func() ingest.Source

var registry = map[string]constructor{
	"ripe": RIPE,
	"arin": ARIN,
}

// ByName returns the source variant registered under name.
func ByName(name string) (ingest.Source, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ingest.Source{}, fmt.Errorf("unknown source kind %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func lists(attrs ...string) []ingest.ListField {
	out := make([]ingest.ListField, len(attrs))
	for i, attr := range attrs {
		out[i] = ingest.ListField{Attr: attr, Flag: ":" + strings.ToLower(attr)}
	}
	return out
}

// reverseHelpers pushes, for every handle attribute of a record, the record
// key into "<handle>:<object type>" so records can be found by maintainer,
// contact or organisation.
type reverseHelpers struct {
	attrs []string
}

func (h reverseHelpers) PushHelperKeys(ctx context.Context, w store.Store, pattern, recordKey string, rec ingest.Record) error {
	subkey := ":" + strings.ToLower(strings.TrimPrefix(pattern, "^"))
	for _, attr := range h.attrs {
		for _, handle := range ingest.UniqueValues(rec.Attrs.All(attr)) {
			if err := w.AddToSet(ctx, handle+subkey, recordKey); err != nil {
				return err
			}
		}
	}
	return nil
}
