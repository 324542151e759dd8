package scraper

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultCacheTTL = 6 * time.Hour

type cachedPage struct {
	HTML      []byte
	ExpiresAt int64
}

// BadgerCache keeps fetched storefront HTML in badger, keyed by normalized URL.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &BadgerCache{db: db, ttl: ttl}
}

// OpenBadgerCache opens (or creates) a cache database at dir.
func OpenBadgerCache(dir string, ttl time.Duration) (*BadgerCache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return NewBadgerCache(db, ttl), nil
}

func (c *BadgerCache) Close() error { return c.db.Close() }

func cacheKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "page:" + raw
	}
	normalized := purell.NormalizeURL(
		u,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	return "page:" + normalized
}

// Get returns a cached page; expired entries are deleted and reported as misses.
func (c *BadgerCache) Get(ctx context.Context, raw string) (string, bool) {
	_, span := tracer.Start(ctx, "cache.Get")
	defer span.End()

	key := []byte(cacheKey(raw))
	span.SetAttributes(attribute.String("cache_key", string(key)))

	var page cachedPage
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&page)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached page")
		return "", false
	}

	if now().Unix() >= page.ExpiresAt {
		span.AddEvent("delete expired cache key")
		_ = c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		return "", false
	}
	return string(page.HTML), true
}

func (c *BadgerCache) Put(ctx context.Context, raw, html string) error {
	_, span := tracer.Start(ctx, "cache.Put")
	defer span.End()

	var buf bytes.Buffer
	page := cachedPage{HTML: []byte(html), ExpiresAt: now().Add(c.ttl).Unix()}
	if err := gob.NewEncoder(&buf).Encode(page); err != nil {
		span.RecordError(err)
		return err
	}
	key := []byte(cacheKey(raw))
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
	}
	return err
}
