package sources

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"

	"whoisindex/internal/dump"
	"whoisindex/internal/ingest"
	"whoisindex/internal/store"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"ripe", "ARIN"} {
		src, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if src.Helpers == nil || len(src.Schemas) == 0 {
			t.Fatalf("ByName(%q) returned an incomplete source", name)
		}
	}
	if _, err := ByName("lacnic"); err == nil {
		t.Fatal("ByName accepted an unknown source kind")
	}
}

func TestRIPEReverseHelpers(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	in, err := ingest.New(RIPE(), mem, 100)
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}

	rec := ingest.RecordFromEntry(dump.Entry{
		Pattern: "^route",
		Text:    "route: 193.0.0.0/21\norigin: AS3333\nmnt-by: RIPE-NCC-MNT\nmnt-by: RIPE-NCC-MNT\n",
	})
	if err := in.Ingest(ctx, rec); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	reverse, _ := mem.Members(ctx, "RIPE-NCC-MNT:route")
	if !reflect.DeepEqual(reverse, []string{"193.0.0.0/21"}) {
		t.Fatalf("reverse helper = %v", reverse)
	}
	origins, _ := mem.Members(ctx, "193.0.0.0/21:origin")
	if !reflect.DeepEqual(origins, []string{"AS3333"}) {
		t.Fatalf("origin list = %v", origins)
	}
	for _, bucket := range []string{"193.0.0", "193.0.7"} {
		if ids, _ := mem.Members(ctx, bucket); len(ids) != 1 {
			t.Fatalf("bucket %s = %v", bucket, ids)
		}
	}
	if payload, _, _ := mem.Payload(ctx, "3238002688_3238004735"); payload != "AS3333" {
		t.Fatalf("payload = %q, want AS3333", payload)
	}
}

func TestARINNetRange(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	in, err := ingest.New(ARIN(), mem, 100)
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	rec := ingest.RecordFromEntry(dump.Entry{
		Pattern: "^NetHandle",
		Text:    "NetHandle: NET-192-0-2-0-1\nOrgID: EXAMPLE\nNetName: TEST-NET-1\nNetRange: 192.0.2.0 - 192.0.2.255\n",
	})
	if err := in.Ingest(ctx, rec); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if nets, _ := mem.Members(ctx, "EXAMPLE:nethandle"); !reflect.DeepEqual(nets, []string{"NET-192-0-2-0-1"}) {
		t.Fatalf("org reverse helper = %v", nets)
	}
	if ids, _ := mem.Members(ctx, "192.0.2"); len(ids) != 1 {
		t.Fatalf("bucket 192.0.2 = %v", ids)
	}
}

type fakeCountries map[string]string

func (f fakeCountries) Country(ip net.IP) (string, error) {
	iso, ok := f[ip.String()]
	if !ok {
		return "", errors.New("not found")
	}
	return iso, nil
}

func TestWithGeoTags(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	src := WithGeoTags(RIPE(), fakeCountries{"192.0.2.0": "nl"})
	in, err := ingest.New(src, mem, 100)
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}

	tagged := ingest.RecordFromEntry(dump.Entry{Pattern: "^inetnum", Text: "inetnum: 192.0.2.0 - 192.0.2.255\nmnt-by: MNT-X\n"})
	untagged := ingest.RecordFromEntry(dump.Entry{Pattern: "^inetnum", Text: "inetnum: 198.51.100.0 - 198.51.100.255\n"})
	for _, rec := range []ingest.Record{tagged, untagged} {
		if err := in.Ingest(ctx, rec); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	if got, _ := mem.Members(ctx, "country:NL"); !reflect.DeepEqual(got, []string{"192.0.2.0 - 192.0.2.255"}) {
		t.Fatalf("country:NL = %v", got)
	}
	if got, _ := mem.Members(ctx, "MNT-X:inetnum"); len(got) != 1 {
		t.Fatalf("wrapped helpers were not called: %v", got)
	}
}
