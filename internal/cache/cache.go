// Package cache stores analysis results on disk keyed by content hashes.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// ErrDisabled is returned by operations that need an enabled cache.
var ErrDisabled = errors.New("cache disabled")

// Cache provides file-based caching for analysis results.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// entry is the on-disk envelope around a cached value.
type entry struct {
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New creates a cache rooted at dir. A disabled cache never hits and
// silently drops writes. A non-positive ttlHours keeps entries forever.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{now: time.Now}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
		now:     time.Now,
	}, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Key accumulates the inputs of a cached computation into a BLAKE3 digest.
// Parts are length-prefixed so ("ab","c") and ("a","bc") differ.
type Key struct {
	h *blake3.Hasher
}

// NewKey starts a key in the given namespace.
func NewKey(namespace string) *Key {
	k := &Key{h: blake3.New()}
	return k.Add(namespace)
}

// Add mixes one or more parts into the key.
func (k *Key) Add(parts ...string) *Key {
	for _, p := range parts {
		var n [8]byte
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		_, _ = k.h.Write(n[:])
		_, _ = k.h.Write([]byte(p))
	}
	return k
}

// AddJSON mixes the JSON encoding of v into the key.
func (k *Key) AddJSON(v any) (*Key, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return k, err
	}
	return k.Add(string(data)), nil
}

// Sum returns the hex digest.
func (k *Key) Sum() string {
	return hex.EncodeToString(k.h.Sum(nil))
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get decodes the value stored under key into v. Expired or unreadable
// entries are removed and reported as misses.
func (c *Cache) Get(key string, v any) bool {
	if !c.enabled {
		return false
	}
	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		_ = os.Remove(path)
		return false
	}
	if c.ttl > 0 && c.now().Sub(e.Timestamp) > c.ttl {
		_ = os.Remove(path)
		return false
	}
	return json.Unmarshal(e.Data, v) == nil
}

// Set stores the JSON encoding of v under key.
func (c *Cache) Set(key string, v any) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry{Key: key, Timestamp: c.now(), Data: data})
	if err != nil {
		return err
	}

	// Write then rename so concurrent readers never see a partial entry.
	path := c.keyPath(key)
	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Invalidate removes a cache entry. Missing entries are not an error.
func (c *Cache) Invalidate(key string) error {
	if !c.enabled {
		return nil
	}
	if err := os.Remove(c.keyPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// Prune removes expired entries and returns how many were deleted.
func (c *Cache) Prune() (int, error) {
	if !c.enabled {
		return 0, ErrDisabled
	}
	if c.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := c.walk(func(path string, info fs.FileInfo) error {
		if c.now().Sub(info.ModTime()) > c.ttl {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	if len(key) != 64 || strings.Trim(key, "0123456789abcdef") != "" {
		key = HashBytes([]byte(key))
	}
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) walk(fn func(path string, info fs.FileInfo) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if err := fn(filepath.Join(c.dir, de.Name()), info); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}

	stats := &Stats{}
	var oldest, newest time.Time
	err := c.walk(func(_ string, info fs.FileInfo) error {
		stats.Entries++
		stats.TotalSize += info.Size()
		mod := info.ModTime()
		if oldest.IsZero() || mod.Before(oldest) {
			oldest = mod
		}
		if newest.IsZero() || mod.After(newest) {
			newest = mod
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = c.now().Sub(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = c.now().Sub(newest)
	}
	return stats, nil
}
