package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"whoisindex/internal/support"
)

type Config struct {
	LogLevel       string `json:"log_level"`
	MaxPendingKeys int    `json:"max_pending_keys"`

	Redis struct {
		URL            string `json:"url"`
		KeyPrefix      string `json:"key_prefix"`
		PipelineChunk  int    `json:"pipeline_chunk"`
		MaxBufferedOps int    `json:"max_buffered_ops"`
	} `json:"redis"`

	Retry struct {
		Attempts  int   `json:"attempts"`
		BaseDelay Timer `json:"base_delay"`
	} `json:"retry"`

	Lock struct {
		Enabled bool  `json:"enabled"`
		TTL     Timer `json:"ttl"`
	} `json:"lock"`

	Unpack struct {
		Dir       string `json:"dir"`
		UseTmpfs  bool   `json:"use_tmpfs"`
		TmpfsSize string `json:"tmpfs_size"`
		Cleanup   bool   `json:"cleanup"`
	} `json:"unpack"`

	Ledger struct {
		DSN string `json:"dsn"`
	} `json:"ledger"`

	GeoLite struct {
		CountryDB string `json:"country_db"`
	} `json:"geolite"`

	Sources []Source `json:"sources"`
}

// Source is one dump to ingest.
type Source struct {
	Name string `json:"name"`
	// Kind selects the dump flavour, see sources.Names.
	Kind string `json:"kind"`
	// Archive is a local path or s3://bucket/key, gzip compressed when it
	// ends in .gz.
	Archive  string `json:"archive"`
	DumpName string `json:"dump_name"`
	Enabled  bool   `json:"enabled"`
}

//go:embed default_settings.json
var defaultConfig []byte

// Default returns the embedded default configuration.
func Default() Config {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads the settings file at path on top of the embedded defaults and
// applies environment overrides. A missing file falls back to the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("Settings file not found, using default configuration", "path", path)
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
			log.Debug("Settings file loaded successfully", "path", path)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = support.GetEnv("LOG_LEVEL", c.LogLevel)
	c.MaxPendingKeys = support.GetEnvInt("MAX_PENDING_KEYS", c.MaxPendingKeys)
	c.Redis.URL = support.GetEnv("REDIS_URL", c.Redis.URL)
	c.Redis.KeyPrefix = support.GetEnv("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)
	c.Retry.Attempts = support.GetEnvInt("STORE_RETRY_ATTEMPTS", c.Retry.Attempts)
	c.Unpack.Dir = support.GetEnv("UNPACK_DIR", c.Unpack.Dir)
	c.Unpack.UseTmpfs = support.GetEnvBool("USE_TMPFS", c.Unpack.UseTmpfs)
	c.Unpack.TmpfsSize = support.GetEnv("TMPFS_SIZE", c.Unpack.TmpfsSize)
	c.Ledger.DSN = support.GetEnv("LEDGER_DSN", c.Ledger.DSN)
	c.GeoLite.CountryDB = support.GetEnv("GEOLITE_COUNTRY_DB", c.GeoLite.CountryDB)
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxPendingKeys <= 0 {
		errs = append(errs, fmt.Errorf("max_pending_keys must be positive, got %d", c.MaxPendingKeys))
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.Unpack.Dir == "" {
		errs = append(errs, errors.New("unpack.dir is required"))
	}
	names := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
			continue
		}
		if _, dup := names[src.Name]; dup {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name))
		}
		names[src.Name] = struct{}{}
		if src.Archive == "" {
			errs = append(errs, fmt.Errorf("source %q: archive is required", src.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// EnabledSources returns the sources to ingest. When names is non-empty only
// those sources are returned, enabled or not.
func (c Config) EnabledSources(names ...string) ([]Source, error) {
	if len(names) == 0 {
		var out []Source
		for _, src := range c.Sources {
			if src.Enabled {
				out = append(out, src)
			}
		}
		return out, nil
	}

	byName := make(map[string]Source, len(c.Sources))
	for _, src := range c.Sources {
		byName[src.Name] = src
	}
	out := make([]Source, 0, len(names))
	for _, name := range names {
		src, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("config: unknown source %q", name)
		}
		out = append(out, src)
	}
	return out, nil
}

// LogLevelOrDefault parses LogLevel, falling back to info.
func (c Config) LogLevelOrDefault() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
