package checksum

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bmeg/datacheck/logger"
	"github.com/cockroachdb/pebble"
)

// Cache stores previously computed digests keyed by algorithm and path.
// An entry is only reused when the file size and modification time still
// match what was recorded.
type Cache struct {
	db *pebble.DB
}

type cacheEntry struct {
	Size    int64  `json:"size"`
	ModTime int64  `json:"modTime"`
	Digest  string `json:"digest"`
}

func OpenCache(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func cacheKey(alg Algorithm, path string) []byte {
	return []byte(alg.String() + "\x00" + path)
}

func (c *Cache) Get(alg Algorithm, path string, size int64, modTime time.Time) (string, bool) {
	value, closer, err := c.db.Get(cacheKey(alg, path))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("digest cache read failed", "path", path, "error", err)
		}
		return "", false
	}
	defer closer.Close()
	entry := cacheEntry{}
	if err := json.Unmarshal(value, &entry); err != nil {
		return "", false
	}
	if entry.Size != size || entry.ModTime != modTime.UnixNano() {
		return "", false
	}
	return entry.Digest, true
}

func (c *Cache) Put(alg Algorithm, path string, size int64, modTime time.Time, digest string) error {
	value, err := json.Marshal(cacheEntry{Size: size, ModTime: modTime.UnixNano(), Digest: digest})
	if err != nil {
		return err
	}
	return c.db.Set(cacheKey(alg, path), value, pebble.Sync)
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// CachedHasher consults a Cache before hashing a file and records new
// digests after hashing.
type CachedHasher struct {
	*FileHasher
	Cache *Cache
}

func (ch *CachedHasher) Sum(path string) (string, error) {
	info, err := ch.Fs.Stat(path)
	if err != nil {
		return "", err
	}
	if d, ok := ch.Cache.Get(ch.Algorithm, path, info.Size(), info.ModTime()); ok {
		return d, nil
	}
	d, err := ch.FileHasher.Sum(path)
	if err != nil {
		return "", err
	}
	if err := ch.Cache.Put(ch.Algorithm, path, info.Size(), info.ModTime(), d); err != nil {
		logger.Debug("digest cache write failed", "path", path, "error", err)
	}
	return d, nil
}
