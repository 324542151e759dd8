package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"vrstore/pkg/utils"
)

const (
	DriverSQLite3 = "sqlite3" // mattn/go-sqlite3, cgo
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverLibSQL  = "libsql"  // remote libsql / turso
)

type Config struct {
	Driver string
	DSN    string
}

func ConfigFrom(sc utils.StoreConfig) Config {
	return Config{Driver: sc.Driver, DSN: sc.DSN}
}

func (c Config) isLocalSQLite() bool {
	return c.Driver == DriverSQLite3 || c.Driver == DriverSQLite
}

func (c Config) inMemory() bool {
	return strings.Contains(c.DSN, ":memory:") || strings.Contains(c.DSN, "mode=memory")
}

// EnsureDataDir creates the parent directory of a local sqlite file.
func EnsureDataDir(cfg Config) error {
	if !cfg.isLocalSQLite() || cfg.inMemory() {
		return nil
	}
	path := strings.TrimPrefix(cfg.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Open connects to the database and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite3, DriverSQLite, DriverLibSQL:
	default:
		return nil, fmt.Errorf("unknown sql driver %q", cfg.Driver)
	}
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.isLocalSQLite() {
		// sqlite allows one writer; an in-memory database exists per connection
		db.SetMaxOpenConns(1)

		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma foreign_keys: %w", err)
		}
		if !cfg.inMemory() {
			if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("pragma journal_mode: %w", err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// OpenWithRetry is Open under a retry policy, for remote databases that may
// come up after the server does.
func OpenWithRetry(ctx context.Context, cfg Config, retry utils.RetryPolicy) (*sql.DB, error) {
	var db *sql.DB
	err := retry.Do(ctx, "open "+cfg.Driver, func() error {
		var err error
		db, err = Open(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// MustOpen opens and migrates, exiting the process on failure.
func MustOpen(ctx context.Context, cfg Config, retry utils.RetryPolicy) *sql.DB {
	db, err := OpenWithRetry(ctx, cfg, retry)
	if err != nil {
		log.Fatal("failed to open db", "driver", cfg.Driver, "err", err)
	}
	if err := Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate db", "err", err)
	}
	return db
}
