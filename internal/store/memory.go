package store

import (
	"context"
	"sort"
	"sync"

	"whoisindex/internal/decompose"
	"whoisindex/internal/netaddr"
)

// Memory is an unbuffered in-process Store used for dry runs and tests.
type Memory struct {
	mu       sync.RWMutex
	sets     map[string]map[string]struct{}
	payloads map[string]string
	flushes  int
}

func NewMemory() *Memory {
	return &Memory{
		sets:     make(map[string]map[string]struct{}),
		payloads: make(map[string]string),
	}
}

func (m *Memory) AddToBucket(ctx context.Context, bucket decompose.Bucket, id netaddr.RangeID) error {
	return m.AddToSet(ctx, string(bucket), string(id))
}

func (m *Memory) SetPayload(_ context.Context, id netaddr.RangeID, value string) error {
	m.mu.Lock()
	m.payloads[string(id)] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) AddToSet(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (m *Memory) Flush(context.Context) error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

// Members returns the sorted members of key.
func (m *Memory) Members(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.sets[key]
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Payload(_ context.Context, id netaddr.RangeID) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.payloads[string(id)]
	return value, ok, nil
}

// Keys returns the sorted set keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets))
	for key := range m.sets {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}
