package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"whoisindex/internal/config"
	"whoisindex/internal/database"
	"whoisindex/internal/domain"
	"whoisindex/internal/dump"
	"whoisindex/internal/ingest"
	"whoisindex/internal/sources"
	"whoisindex/internal/store"
	"whoisindex/internal/support"
	"whoisindex/internal/unpack"
)

const lockKeyPrefix = "whoisindex:lock:"

// Runner ingests configured dump sources into the entry store.
type Runner struct {
	cfg    config.Config
	client redis.Cmdable
	opener *unpack.Opener

	// Optional collaborators.
	ledger    *database.Ledger
	countries sources.CountryLookup
	// newStore overrides the Redis-backed store, used for dry runs.
	newStore func() store.Store

	mu      sync.Mutex
	results map[string]ingest.Stats
}

type RunnerOption func(*Runner)

func WithLedger(l *database.Ledger) RunnerOption {
	return func(r *Runner) { r.ledger = l }
}

func WithCountries(c sources.CountryLookup) RunnerOption {
	return func(r *Runner) { r.countries = c }
}

func WithOpener(o *unpack.Opener) RunnerOption {
	return func(r *Runner) { r.opener = o }
}

// WithMemoryStore writes every source into its own in-memory store instead of
// Redis. Nothing outside the process is modified.
func WithMemoryStore() RunnerOption {
	return func(r *Runner) {
		r.newStore = func() store.Store { return store.NewMemory() }
	}
}

func NewRunner(cfg config.Config, client redis.Cmdable, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:     cfg,
		client:  client,
		results: make(map[string]ingest.Stats),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opener == nil {
		r.opener = unpack.NewOpener(nil)
	}
	return r
}

// Results returns the stats of every source that finished successfully.
func (r *Runner) Results() map[string]ingest.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ingest.Stats, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

// IngestAll runs every source concurrently. Each source is processed by a
// single goroutine; the first failure cancels the others.
func (r *Runner) IngestAll(ctx context.Context, srcs []config.Source) error {
	if len(srcs) == 0 {
		log.Warn("No sources selected, nothing to ingest")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range srcs {
		g.Go(func() error {
			if err := r.IngestSource(gctx, src); err != nil {
				return fmt.Errorf("source %s: %w", src.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// IngestSource indexes one dump. When locking is enabled the run holds a
// Redis lock named after the source for its whole duration.
func (r *Runner) IngestSource(ctx context.Context, src config.Source) error {
	variant, err := sources.ByName(src.Kind)
	if err != nil {
		return err
	}
	if r.countries != nil {
		variant = sources.WithGeoTags(variant, r.countries)
	}

	run := func(ctx context.Context) error {
		return r.ingestLocked(ctx, src, variant)
	}

	if !r.cfg.Lock.Enabled || r.client == nil || r.newStore != nil {
		return run(ctx)
	}
	ttl := r.cfg.Lock.TTL.Duration()
	if ttl <= 0 {
		ttl = support.DefaultLockTTL
	}
	return support.WithLock(ctx, r.client, lockKeyPrefix+src.Name, ttl, run)
}

func (r *Runner) ingestLocked(ctx context.Context, src config.Source, variant ingest.Source) (err error) {
	var stats ingest.Stats

	if r.ledger != nil {
		if prev, ok, prevErr := r.ledger.LatestRun(ctx, src.Name); prevErr != nil {
			log.Warn("Failed to read previous import run", "source", src.Name, "error", prevErr)
		} else if ok {
			log.Info("Previous import", "source", src.Name, "status", prev.Status, "started_at", prev.StartedAt, "records", prev.Records)
		}

		entry, startErr := r.ledger.StartRun(ctx, src.Name, src.Archive, variant.Patterns())
		if startErr != nil {
			log.Warn("Failed to record import run", "source", src.Name, "error", startErr)
		} else {
			defer func() {
				// The run context may already be cancelled.
				finishCtx := context.WithoutCancel(ctx)
				if finishErr := r.ledger.FinishRun(finishCtx, entry.ID, counters(stats), err); finishErr != nil {
					log.Warn("Failed to finish import run", "source", src.Name, "run", entry.ID, "error", finishErr)
				}
			}()
		}
	}

	st := r.storeFor()
	in, err := ingest.New(variant, st, r.cfg.MaxPendingKeys)
	if err != nil {
		return err
	}

	log.Info("Ingesting source", "source", src.Name, "kind", src.Kind, "archive", src.Archive)
	err = unpack.WithWorkspace(ctx, r.workspace(src), func(dir string) error {
		path, err := r.opener.Prepare(ctx, src.Archive, dir, src.DumpName)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open dump: %w", err)
		}
		defer f.Close()

		stats, err = in.Run(ctx, dump.NewScanner(f, variant.Patterns()))
		return err
	})
	if err != nil {
		return err
	}

	logStoreSummary(src.Name, st)

	r.mu.Lock()
	r.results[src.Name] = stats
	r.mu.Unlock()
	return nil
}

func (r *Runner) storeFor() store.Store {
	if r.newStore != nil {
		return r.newStore()
	}
	return store.NewRedis(r.client, r.redisOptions())
}

func (r *Runner) redisOptions() store.RedisOptions {
	return store.RedisOptions{
		Prefix:         r.cfg.Redis.KeyPrefix,
		PipelineChunk:  r.cfg.Redis.PipelineChunk,
		MaxBufferedOps: r.cfg.Redis.MaxBufferedOps,
		Retry: support.RetryPolicy{
			Attempts:  r.cfg.Retry.Attempts,
			BaseDelay: r.cfg.Retry.BaseDelay.Duration(),
		},
	}
}

func (r *Runner) workspace(src config.Source) unpack.Workspace {
	dir := filepath.Join(r.cfg.Unpack.Dir, src.Name)
	if r.cfg.Unpack.UseTmpfs {
		return &unpack.Tmpfs{Path: dir, Size: r.cfg.Unpack.TmpfsSize}
	}
	return &unpack.PlainDir{Path: dir, Cleanup: r.cfg.Unpack.Cleanup}
}

func logStoreSummary(source string, st store.Store) {
	switch s := st.(type) {
	case *store.Redis:
		log.Info("Redis writes acknowledged", "source", source, "written", s.Written())
	case *store.Memory:
		log.Info("Dry run index built", "source", source, "keys", len(s.Keys()))
	}
}

func counters(s ingest.Stats) domain.RunCounters {
	return domain.RunCounters{
		Records:      int64(s.Records),
		Ranges:       int64(s.Ranges),
		Buckets:      int64(s.Buckets),
		SetMembers:   int64(s.SetMembers),
		Skipped:      int64(s.Skipped),
		Unrecognized: int64(s.Unrecognized),
		Flushes:      int64(s.Flushes),
	}
}

// IsLockHeld reports whether err means another process is ingesting the same
// source.
func IsLockHeld(err error) bool {
	return errors.Is(err, support.ErrLockHeld)
}
