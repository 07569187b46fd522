package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("scheduler: unknown database driver")

// Config selects and tunes the database.
//
// Driver values:
//   - "sqlite": a database file (or ":memory:") through gorm.io/driver/sqlite
//   - "postgres": a PostgreSQL DSN through gorm.io/driver/postgres
type Config struct {
	Driver   string
	DSN      string
	LogLevel string // silent, error, warn, info
	Pool     PoolConfig
}

// Open connects to the configured database with UTC timestamps and applies
// the pool configuration. sqlite is limited to a single connection since it
// serializes writers and an in-memory database lives on one connection.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "scheduler.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, ErrUnknownDriver
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "sqlite" {
		if err := pinSingleConn(db); err != nil {
			return nil, err
		}
		return db, nil
	}
	if err := applyPool(db, cfg.Pool); err != nil {
		return nil, err
	}
	return db, nil
}

// pinSingleConn keeps exactly one connection open forever. Closing it would
// drop an in-memory database.
func pinSingleConn(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)
	return nil
}

func parseLogLevel(s string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
