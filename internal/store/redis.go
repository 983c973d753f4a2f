package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"whoisindex/internal/decompose"
	"whoisindex/internal/netaddr"
	"whoisindex/internal/support"
)

const (
	defaultPipelineChunk  = 10000
	defaultMaxBufferedOps = 1_000_000
)

type opKind uint8

const (
	opSAdd opKind = iota
	opSet
)

type op struct {
	kind  opKind
	key   string
	value string
}

type RedisOptions struct {
	// Prefix namespaces every key written or read.
	Prefix string
	// PipelineChunk caps the commands sent per pipeline round trip.
	PipelineChunk int
	// MaxBufferedOps forces a flush when this many writes are pending.
	MaxBufferedOps int
	Retry          support.RetryPolicy
}

// Redis buffers writes and sends them as SADD/SET pipelines on Flush.
type Redis struct {
	client redis.Cmdable
	opts   RedisOptions

	mu      sync.Mutex
	pending []op
	written uint64
}

func NewRedis(client redis.Cmdable, opts RedisOptions) *Redis {
	if opts.PipelineChunk <= 0 {
		opts.PipelineChunk = defaultPipelineChunk
	}
	if opts.MaxBufferedOps <= 0 {
		opts.MaxBufferedOps = defaultMaxBufferedOps
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) AddToBucket(ctx context.Context, bucket decompose.Bucket, id netaddr.RangeID) error {
	return r.enqueue(ctx, op{kind: opSAdd, key: string(bucket), value: string(id)})
}

func (r *Redis) SetPayload(ctx context.Context, id netaddr.RangeID, value string) error {
	return r.enqueue(ctx, op{kind: opSet, key: string(id), value: value})
}

func (r *Redis) AddToSet(ctx context.Context, key, member string) error {
	return r.enqueue(ctx, op{kind: opSAdd, key: key, value: member})
}

func (r *Redis) enqueue(ctx context.Context, o op) error {
	r.mu.Lock()
	r.pending = append(r.pending, o)
	full := len(r.pending) >= r.opts.MaxBufferedOps
	r.mu.Unlock()

	if full {
		return r.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered writes.
func (r *Redis) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Written returns the number of writes acknowledged by the server.
func (r *Redis) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Flush sends buffered writes chunk by chunk. A failing chunk is retried with
// backoff; once the retries run out the error wraps ErrStoreUnavailable and the
// unsent writes stay buffered.
func (r *Redis) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.pending) > 0 {
		n := min(len(r.pending), r.opts.PipelineChunk)
		chunk := r.pending[:n]

		err := support.Retry(ctx, r.opts.Retry, "redis pipeline", func(ctx context.Context) error {
			return r.execChunk(ctx, chunk)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		r.written += uint64(n)
		r.pending = r.pending[n:]
	}
	r.pending = nil
	log.Debug("Redis flush completed", "written", r.written)
	return nil
}

func (r *Redis) execChunk(ctx context.Context, chunk []op) error {
	pipe := r.client.Pipeline()
	for _, o := range chunk {
		key := r.opts.Prefix + o.key
		switch o.kind {
		case opSAdd:
			pipe.SAdd(ctx, key, o.value)
		case opSet:
			pipe.Set(ctx, key, o.value, 0)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec failed: %w", err)
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.opts.Prefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %q: %w", key, err)
	}
	sort.Strings(members)
	return members, nil
}

func (r *Redis) Payload(ctx context.Context, id netaddr.RangeID) (string, bool, error) {
	value, err := r.client.Get(ctx, r.opts.Prefix+string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", id, err)
	}
	return value, true, nil
}
