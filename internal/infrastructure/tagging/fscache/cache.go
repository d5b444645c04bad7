// Package fscache stores generated keyword lists on disk, content-addressed
// by file hash, so reprocessing an unchanged image never re-calls the
// tagging API.
package fscache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Cache implements ports.TagCache. Each entry lives in <hash>.json under
// the cache directory.
type Cache struct {
	dir string
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tag cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

type entry struct {
	Tags []string `json:"tags"`
}

// Get returns the cached tags for a hash. Corrupt or unreadable entries
// are treated as misses.
func (c *Cache) Get(hash string) ([]string, bool) {
	if !validHash(hash) {
		return nil, false
	}

	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Debug("tag_cache_corrupt_entry", "hash", hash, "error", err)
		return nil, false
	}
	if len(e.Tags) == 0 {
		return nil, false
	}
	return e.Tags, true
}

func (c *Cache) Put(hash string, tags []string) error {
	if !validHash(hash) {
		return fmt.Errorf("tag cache: invalid hash %q", hash)
	}
	if len(tags) == 0 {
		return nil
	}

	data, err := json.Marshal(entry{Tags: tags})
	if err != nil {
		return fmt.Errorf("marshal tag cache entry: %w", err)
	}

	tmp := c.path(hash) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tag cache entry: %w", err)
	}
	if err := os.Rename(tmp, c.path(hash)); err != nil {
		return fmt.Errorf("commit tag cache entry: %w", err)
	}
	return nil
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// validHash rejects anything that could escape the cache directory.
func validHash(hash string) bool {
	if hash == "" {
		return false
	}
	for _, r := range hash {
		ok := r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
		if !ok {
			return false
		}
	}
	return !strings.Contains(hash, string(filepath.Separator))
}
