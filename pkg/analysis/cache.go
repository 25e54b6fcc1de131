package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/haivivi/mixcraft/pkg/kv"
)

// Cache stores analysis results keyed by a digest of the file contents, so
// re-downloaded or renamed files still hit. Entries are disposable: a miss
// just means the file gets analyzed again.
type Cache struct {
	store kv.Store
}

// NewCache wraps a kv store as an analysis cache.
func NewCache(store kv.Store) *Cache {
	return &Cache{store: store}
}

// OpenCache opens a badger-backed cache at dir.
func OpenCache(dir string) (*Cache, error) {
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("analysis: open cache: %w", err)
	}
	return &Cache{store: store}, nil
}

// Get returns the cached analysis for the file at path, or an error when the
// file cannot be digested or no entry exists.
func (c *Cache) Get(ctx context.Context, path string) (*Analysis, error) {
	key, err := cacheKey(path)
	if err != nil {
		return nil, err
	}
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("analysis: decode cache entry: %w", err)
	}
	a.Path = path
	return &a, nil
}

// Put stores the analysis for the file at path.
func (c *Cache) Put(ctx context.Context, path string, a *Analysis) error {
	key, err := cacheKey(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("analysis: encode cache entry: %w", err)
	}
	return c.store.Set(ctx, key, raw)
}

// Purge removes every cached analysis entry and reports how many were
// deleted. Other data in the store is left alone.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	var keys []kv.Key
	for e, err := range c.store.List(ctx, kv.Key{"analysis"}) {
		if err != nil {
			return 0, fmt.Errorf("analysis: purge cache: %w", err)
		}
		keys = append(keys, e.Key)
	}
	for i, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return i, fmt.Errorf("analysis: purge cache: %w", err)
		}
	}
	return len(keys), nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func cacheKey(path string) (kv.Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("analysis: digest %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("analysis: digest %s: %w", path, err)
	}
	return kv.Key{"analysis", "sha256", hex.EncodeToString(h.Sum(nil))}, nil
}
