package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"whoisindex/internal/app/version"
	"whoisindex/internal/config"
	"whoisindex/internal/database"
	"whoisindex/internal/lookup"
	"whoisindex/internal/sources"
	"whoisindex/internal/store"
	"whoisindex/internal/support"
)

const (
	defaultSettingsPath = "settings.json"
	staleRunAge         = 24 * time.Hour
)

type options struct {
	settingsPath string
	sources      []string
	lookup       string
	history      int
	dryRun       bool
}

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	settingsFlag := flag.String("config", "", "Path to the JSON settings file")
	sourceFlag := flag.String("source", "", "Comma separated source names to ingest (default: all enabled)")
	lookupFlag := flag.String("lookup", "", "Resolve an address against the index instead of ingesting")
	historyFlag := flag.Int("history", 0, "Print the N most recent import runs and exit")
	dryRunFlag := flag.Bool("dry-run", false, "Parse and decompose dumps without writing to Redis")
	flag.Parse()

	opts := options{
		settingsPath: resolveSettingsPath(*settingsFlag),
		sources:      parseSourceList(*sourceFlag),
		lookup:       strings.TrimSpace(*lookupFlag),
		history:      *historyFlag,
		dryRun:       *dryRunFlag,
	}

	cfg, err := config.Load(opts.settingsPath)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevelOrDefault())

	info := version.Get()
	log.Info("Starting whois indexer", "version", info.BuildVersion, "built_at", info.BuiltAt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cfg, opts, os.Stdout)
}

func execute(ctx context.Context, cfg config.Config, opts options, out io.Writer) error {
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			log.Warn("error closing ledger", "error", err)
		}
	}()

	if opts.history > 0 {
		return printHistory(ctx, ledger, opts.sources, opts.history, out)
	}

	if opts.dryRun && opts.lookup == "" {
		selected, err := cfg.EnabledSources(opts.sources...)
		if err != nil {
			return err
		}
		runner := NewRunner(cfg, nil, WithMemoryStore(), WithLedger(ledger))
		if err := withCountries(cfg, runner, func() error { return runner.IngestAll(ctx, selected) }); err != nil {
			return err
		}
		printResults(runner, out)
		return nil
	}

	redisClient, err := support.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to get redis client: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}()

	if opts.lookup != "" {
		reader := store.NewRedis(redisClient, store.RedisOptions{Prefix: cfg.Redis.KeyPrefix})
		return printLookup(ctx, lookup.NewResolver(reader), opts.lookup, out)
	}

	selected, err := cfg.EnabledSources(opts.sources...)
	if err != nil {
		return err
	}
	runner := NewRunner(cfg, redisClient, WithLedger(ledger))
	if err := withCountries(cfg, runner, func() error { return runner.IngestAll(ctx, selected) }); err != nil {
		if IsLockHeld(err) {
			log.Warn("Another process is ingesting this source", "error", err)
		}
		return err
	}
	printResults(runner, out)
	return nil
}

// openLedger returns a nil ledger when no DSN is configured. Runs that the
// previous process left open are marked failed.
func openLedger(ctx context.Context, cfg config.Config) (*database.Ledger, error) {
	var opts []database.Option
	if cfg.LogLevelOrDefault() <= log.DebugLevel {
		opts = append(opts, database.WithLogger(database.VerboseLogger()))
	}
	ledger, err := database.Open(cfg.Ledger.DSN, opts...)
	if errors.Is(err, database.ErrLedgerDisabled) {
		log.Debug("Import ledger disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if n, err := ledger.AbandonStaleRuns(ctx, staleRunAge); err != nil {
		log.Warn("Failed to clean up stale import runs", "error", err)
	} else if n > 0 {
		log.Info("Marked stale import runs as failed", "count", n)
	}
	return ledger, nil
}

func withCountries(cfg config.Config, runner *Runner, fn func() error) error {
	if cfg.GeoLite.CountryDB == "" {
		return fn()
	}
	geo, err := sources.OpenGeoLite(cfg.GeoLite.CountryDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := geo.Close(); err != nil {
			log.Warn("error closing geolite database", "error", err)
		}
	}()
	runner.countries = geo
	return fn()
}

func printLookup(ctx context.Context, resolver *lookup.Resolver, address string, out io.Writer) error {
	matches, err := resolver.Lookup(ctx, address)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintf(out, "%s: no matching range\n", address)
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(out, "%s\t%s\t%s\n", m.NetworkKey, m.Range.First, m.Range.Last)
	}
	return nil
}

func printHistory(ctx context.Context, ledger *database.Ledger, names []string, limit int, out io.Writer) error {
	if ledger == nil {
		return errors.New("history requires a ledger DSN")
	}
	filter := ""
	if len(names) == 1 {
		filter = names[0]
	}
	runs, err := ledger.ListRuns(ctx, filter, limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\trecords=%d ranges=%d skipped=%d\t%s\n",
			run.StartedAt.Format(time.RFC3339), run.Source, run.Status, run.Duration().Round(time.Second),
			run.Records, run.Ranges, run.Skipped, run.Error)
	}
	return nil
}

func printResults(runner *Runner, out io.Writer) {
	results := runner.Results()
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := results[name]
		fmt.Fprintf(out, "%s\trecords=%d ranges=%d buckets=%d skipped=%d flushes=%d\n",
			name, stats.Records, stats.Ranges, stats.Buckets, stats.Skipped, stats.Flushes)
	}
}

func resolveSettingsPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return support.GetEnv("SETTINGS_PATH", defaultSettingsPath)
}

func parseSourceList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
