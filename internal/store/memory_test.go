package store

import (
	"context"
	"reflect"
	"testing"
)

func TestMemoryWritesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	once := NewMemory()
	twice := NewMemory()

	apply := func(m *Memory) {
		_ = m.AddToBucket(ctx, "10.1", "1_2")
		_ = m.SetPayload(ctx, "1_2", "NET-A")
		_ = m.AddToSet(ctx, "NET-A:netname", "EXAMPLE")
	}
	apply(once)
	apply(twice)
	apply(twice)

	for _, key := range []string{"10.1", "NET-A:netname"} {
		a, _ := once.Members(ctx, key)
		b, _ := twice.Members(ctx, key)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Members(%q) differ: %v vs %v", key, a, b)
		}
	}
	if !reflect.DeepEqual(once.Keys(), twice.Keys()) {
		t.Fatalf("Keys differ: %v vs %v", once.Keys(), twice.Keys())
	}
	a, _, _ := once.Payload(ctx, "1_2")
	b, _, _ := twice.Payload(ctx, "1_2")
	if a != b || a != "NET-A" {
		t.Fatalf("Payload mismatch: %q vs %q", a, b)
	}
}

func TestMemoryPayloadLastWriteWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.SetPayload(ctx, "1_2", "old")
	_ = m.SetPayload(ctx, "1_2", "new")
	if got, ok, _ := m.Payload(ctx, "1_2"); !ok || got != "new" {
		t.Fatalf("Payload returned %q, %v; want new, true", got, ok)
	}
	if _, ok, _ := m.Payload(ctx, "missing"); ok {
		t.Fatal("Payload reported a missing id as present")
	}
}
