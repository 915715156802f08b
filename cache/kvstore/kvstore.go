// Package kvstore implements a key-value store.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/akrylysov/pogreb"

	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
)

// How long OpenKVStore waits for pogreb before continuing without a cache.
var openTimeout = 30 * time.Second

// A key in the KVStore.
type CacheKey []byte

// GenerateCacheKey joins the parts with "-", e.g. "polkadot-9430".
func GenerateCacheKey(parts ...string) CacheKey {
	return CacheKey(strings.Join(parts, "-"))
}

func (k CacheKey) String() string {
	return string(k)
}

// A key-value store of raw bytes.
type KVStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Close() error
}

type pogrebKVStore struct {
	db *pogreb.DB

	path    string
	logger  *log.Logger
	metrics *metrics.CacheMetrics // if nil, no metrics are emitted

	// Set once the store is open. pogreb may still be reindexing in a
	// background goroutine when OpenKVStore returns.
	initialized atomic.Bool
}

var _ KVStore = (*pogrebKVStore)(nil)

// Get implements KVStore.
func (s *pogrebKVStore) Get(key []byte) ([]byte, error) {
	if !s.initialized.Load() {
		return nil, fmt.Errorf("kvstore: not initialized yet")
	}
	return s.db.Get(key)
}

// Has implements KVStore.
func (s *pogrebKVStore) Has(key []byte) (bool, error) {
	if !s.initialized.Load() {
		return false, nil
	}
	return s.db.Has(key)
}

// Put implements KVStore. Writes before initialization are dropped.
func (s *pogrebKVStore) Put(key []byte, value []byte) error {
	if !s.initialized.Load() {
		s.logger.Debug("skipping write to uninitialized KVStore", "key", string(key))
		return nil
	}
	return s.db.Put(key, value)
}

// Close implements KVStore.
func (s *pogrebKVStore) Close() error {
	if !s.initialized.Load() {
		s.logger.Warn("skipping closing uninitialized KVStore")
		return nil
	}
	s.logger.Info("closing KVStore", "path", s.path)
	return s.db.Close()
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// moveIndexes moves everything in dir except the data segments and the
// lock file into dst.
func moveIndexes(dir string, dst string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("unable to list %s: %w", dir, err)
	}
	if err := os.MkdirAll(dst, 0o700); err != nil {
		return fmt.Errorf("unable to create destination directory %s: %w", dst, err)
	}
	for _, e := range entries {
		name := e.Name()
		if name == "lock" || strings.HasSuffix(name, ".psg") {
			continue
		}
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dst, name)); err != nil {
			return fmt.Errorf("unable to move %s to %s: %w", name, dst, err)
		}
	}
	return nil
}

func deleteFiles(pattern string) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("unable to glob for files %s to delete: %w", pattern, err)
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// preBackup runs before pogreb opens a store that was not closed cleanly.
// pogreb renames stale indexes to <name>.bac, then .bac.bac and so on; a
// crash loop grows those names until the filesystem rejects them.
func (s *pogrebKVStore) preBackup() {
	backupDir := s.path + ".backup"
	if pathExists(filepath.Join(s.path, "lock")) {
		s.logger.Info("pogreb lock file found; backing up indexes", "path", s.path, "backup_path", backupDir)
		if !pathExists(backupDir) {
			if err := moveIndexes(s.path, backupDir); err != nil {
				s.logger.Warn("failed to back up pogreb indexes", "err", err, "path", s.path)
			}
		}
	}
	if err := deleteFiles(filepath.Join(s.path, "*.bac.bac")); err != nil {
		s.logger.Warn("failed to delete repeatedly backed-up pogreb indexes", "err", err)
	}
}

func (s *pogrebKVStore) init() error {
	s.preBackup()

	s.logger.Info("(re)opening KVStore", "path", s.path)
	db, err := pogreb.Open(s.path, &pogreb.Options{BackgroundSyncInterval: -1})
	if err != nil {
		s.logger.Error("failed to initialize pogreb store", "err", err)
		return err
	}
	s.db = db
	s.initialized.Store(true)
	s.logger.Info("KVStore opened", "path", s.path, "entries", db.Count())
	return nil
}

// OpenKVStore opens the store at path, creating it if needed. When pogreb
// has to reindex after a crash the store is returned before it is ready
// and behaves as an empty cache until the reindex completes. m may be nil.
func OpenKVStore(logger *log.Logger, path string, m *metrics.CacheMetrics) (KVStore, error) {
	store := &pogrebKVStore{
		logger:  logger,
		path:    path,
		metrics: m,
	}

	initErrCh := make(chan error, 1)
	go func() {
		initErrCh <- store.init()
	}()

	select {
	case err := <-initErrCh:
		if err != nil {
			return nil, err
		}
		return store, nil
	case <-time.After(openTimeout):
		logger.Warn("KVStore initialization timed out, continuing without cache while the database is reindexing in the background")
		return store, nil
	}
}

func countRead(cache KVStore, status metrics.CacheReadStatus) {
	if s, ok := cache.(*pogrebKVStore); ok && s.metrics != nil {
		s.metrics.LocalCacheReads(status).Inc()
	}
}

// GetOrCall returns the cached value of key. On a miss it calls valueFunc
// and stores the result. Cache read errors are logged and treated as a
// miss; a failed write is returned together with the computed value.
func GetOrCall(cache KVStore, key CacheKey, valueFunc func() ([]byte, error)) ([]byte, error) {
	raw, err := read(cache, key)
	switch {
	case err != nil:
		if s, ok := cache.(*pogrebKVStore); ok {
			s.logger.Warn("error reading from cache", "key", key.String(), "err", err)
		}
	case raw != nil:
		return raw, nil
	}

	computed, err := valueFunc()
	if err != nil {
		return nil, err
	}
	return computed, cache.Put(key, computed)
}

// read returns nil, nil on a miss.
func read(cache KVStore, key CacheKey) ([]byte, error) {
	has, err := cache.Has(key)
	if err != nil {
		countRead(cache, metrics.CacheReadStatusError)
		return nil, err
	}
	if !has {
		countRead(cache, metrics.CacheReadStatusMiss)
		return nil, nil
	}
	raw, err := cache.Get(key)
	if err != nil {
		countRead(cache, metrics.CacheReadStatusError)
		return nil, fmt.Errorf("failed to fetch key %s from cache: %w", key, err)
	}
	countRead(cache, metrics.CacheReadStatusHit)
	return raw, nil
}
