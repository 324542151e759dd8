package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"vrstore/pkg/database"
	"vrstore/pkg/utils"
)

const (
	BackendSQL    = "sql"
	BackendBadger = "badger"
	BackendFile   = "file"
)

// Open builds the configured backend under cfg.Retry. For the sql backend an
// already open db is reused; with a nil db one is opened and migrated.
func Open(ctx context.Context, cfg utils.StoreConfig, db *sql.DB) (Store, error) {
	switch cfg.Backend {
	case BackendSQL, "":
		if db == nil {
			var err error
			db, err = database.OpenWithRetry(ctx, database.ConfigFrom(cfg), cfg.Retry)
			if err != nil {
				return nil, err
			}
			if err := database.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return NewSQLStore(db), nil

	case BackendBadger:
		var store *BadgerStore
		err := cfg.Retry.Do(ctx, "open badger", func() error {
			var err error
			store, err = OpenBadgerStore(cfg.Path)
			return err
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case BackendFile:
		var store *FileStore
		err := cfg.Retry.Do(ctx, "open catalog file", func() error {
			var err error
			store, err = OpenFileStore(cfg.Path)
			return err
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown catalog backend %q", cfg.Backend)
}
