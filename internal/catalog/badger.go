package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"vrstore/pkg/models"
)

const (
	appPrefix   = "app:"
	eventPrefix = "download:"
)

// BadgerStore keeps the catalog in an embedded badger database, one JSON
// value per app.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens the database directory at path. An empty path opens
// an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerStore(db), nil
}

func appKey(id string) []byte { return []byte(appPrefix + id) }

func getApp(txn *badger.Txn, id string) (*models.App, error) {
	item, err := txn.Get(appKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a models.App
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &a)
	}); err != nil {
		return nil, fmt.Errorf("decode app %s: %w", id, err)
	}
	return &a, nil
}

func putApp(txn *badger.Txn, a models.App) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode app %s: %w", a.ID, err)
	}
	return txn.Set(appKey(a.ID), b)
}

// update retries fn on transaction conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < 3; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BadgerStore) GetApp(_ context.Context, id string) (*models.App, error) {
	var out *models.App
	err := s.db.View(func(txn *badger.Txn) error {
		a, err := getApp(txn, id)
		out = a
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) ListApps(_ context.Context, q ListQuery) ([]models.App, int, error) {
	var all []models.App
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(appPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var a models.App
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			all = append(all, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list apps: %w", err)
	}
	items, total := filterPage(all, q)
	return items, total, nil
}

func (s *BadgerStore) CreateApp(_ context.Context, app models.App) (string, error) {
	if err := validate(app); err != nil {
		return "", err
	}
	app = prepareNew(app)
	err := s.update(func(txn *badger.Txn) error {
		existing, err := getApp(txn, app.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("app %s already exists", app.ID)
		}
		return putApp(txn, app)
	})
	if err != nil {
		return "", fmt.Errorf("create app: %w", err)
	}
	return app.ID, nil
}

func (s *BadgerStore) UpdateApp(_ context.Context, id string, app models.App) error {
	if err := validate(app); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		stored, err := getApp(txn, id)
		if err != nil {
			return err
		}
		if stored == nil {
			return ErrNotFound
		}
		return putApp(txn, prepareUpdate(*stored, app))
	})
}

func (s *BadgerStore) RecordDownloadEvent(_ context.Context, id string, client models.ClientInfo) error {
	return s.update(func(txn *badger.Txn) error {
		stored, err := getApp(txn, id)
		if err != nil {
			return err
		}
		if stored == nil {
			return ErrNotFound
		}
		stored.Downloads++
		if err := putApp(txn, *stored); err != nil {
			return err
		}

		ev := models.DownloadEvent{AppID: id, Client: client, At: now()}
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s%s:%020d", eventPrefix, id, ev.At.UnixNano())
		return txn.Set([]byte(key), b)
	})
}

func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
