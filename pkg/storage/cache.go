package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Cache holds the last persisted snapshot on disk so a conditional Get can be
// issued after restart, and so a not-modified answer has a local copy to
// fall back on.
type Cache struct {
	Path string `json:"-"`

	mu       sync.RWMutex
	snapshot Snapshot
	dirty    bool
}

// NewCache opens (or initializes) the snapshot cache at path.
func NewCache(path string) (*Cache, error) {
	c := &Cache{Path: path}
	if _, err := os.Stat(path); err == nil {
		if err := c.load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(&c.snapshot)
}

// Save writes the cache to disk if it changed since the last save.
func (c *Cache) Save() error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(&c.snapshot); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Snapshot returns the cached snapshot; Timestamp is zero when nothing has
// been cached yet.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Update replaces the cached snapshot if it differs from the stored one.
func (c *Cache) Update(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot.Timestamp != s.Timestamp || string(c.snapshot.Value) != string(s.Value) {
		c.snapshot = s
		c.dirty = true
	}
}
