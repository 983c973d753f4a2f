package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whoisindex/internal/domain"
	"whoisindex/internal/support"
)

var ErrLedgerDisabled = errors.New("database: ledger disabled")

type Config struct {
	ExistingDB *gorm.DB
	Dialector  gorm.Dialector
	Logger     logger.Interface
	Migrations []any
}

type Option func(*Config)

// Ledger records import runs. All methods are safe for concurrent use.
type Ledger struct {
	db *gorm.DB
}

// Open connects the ledger. An empty dsn and no explicit connection returns
// ErrLedgerDisabled so callers can run without one.
func Open(dsn string, opts ...Option) (*Ledger, error) {
	cfg := defaultConfig(dsn)
	for _, opt := range opts {
		opt(&cfg)
	}

	var db *gorm.DB
	switch {
	case cfg.ExistingDB != nil:
		db = cfg.ExistingDB
		if cfg.Logger != nil {
			db = db.Session(&gorm.Session{NewDB: true, Logger: cfg.Logger})
		}
	case cfg.Dialector != nil:
		gormCfg := &gorm.Config{}
		if cfg.Logger != nil {
			gormCfg.Logger = cfg.Logger
		}
		opened, err := gorm.Open(cfg.Dialector, gormCfg)
		if err != nil {
			return nil, fmt.Errorf("database: open connection: %w", err)
		}
		db = opened
		configureConnectionPool(db)
	default:
		return nil, ErrLedgerDisabled
	}

	if len(cfg.Migrations) > 0 {
		if err := db.AutoMigrate(cfg.Migrations...); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Debug("Ledger migration completed.")
	}

	return &Ledger{db: db}, nil
}

func defaultConfig(dsn string) Config {
	cfg := Config{
		Logger:     silentLogger(),
		Migrations: defaultMigrations(),
	}
	if dsn != "" {
		cfg.Dialector = postgres.Open(dsn)
	}
	return cfg
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

// VerboseLogger logs every ledger statement and flags slow ones.
func VerboseLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Info, SlowThreshold: 200 * time.Millisecond},
	)
}

func defaultMigrations() []any {
	return []any{
		domain.ImportRun{},
	}
}

func WithExistingDB(db *gorm.DB) Option {
	return func(cfg *Config) {
		cfg.ExistingDB = db
	}
}

func WithLogger(l logger.Interface) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func configureConnectionPool(db *gorm.DB) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 4)
	maxIdle := support.GetEnvInt("DB_MAX_IDLE_CONNS", maxOpen)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	connLifetimeSeconds := support.GetEnvInt("DB_CONN_MAX_LIFETIME", 300)

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(connLifetimeSeconds) * time.Second)
	}
}
