// Package cache records which packages were generated from which sources so
// that unchanged packages can be skipped on the next run.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FormatVersion is bumped whenever the cache layout changes. Files with
// another version are discarded.
const FormatVersion = 1

// Entry describes the last generation of one package directory
type Entry struct {
	SourceHash string   `json:"source_hash"`
	ConfigHash string   `json:"config_hash"`
	Generator  string   `json:"generator"`
	Outputs    []string `json:"outputs"`
}

// Cache maps package directories to their last generation. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	path     string
	backend  backend
	packages map[string]Entry
	dirty    bool
}

// backend persists the package entries of a cache
type backend interface {
	load() (map[string]Entry, error)
	save(packages map[string]Entry) error
}

func backendFor(path string) backend {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return sqliteBackend{path: path}
	default:
		return jsonBackend{path: path}
	}
}

// New returns an empty cache persisted at path. An empty path disables
// persistence.
func New(path string) *Cache {
	return &Cache{path: path, backend: backendFor(path), packages: make(map[string]Entry)}
}

// Load reads the cache stored at path. Paths ending in .db or .sqlite use
// an SQLite database, any other path a JSON file. A missing file yields an
// empty cache. A corrupt or outdated file yields an empty cache and an error
// describing it.
func Load(path string) (*Cache, error) {
	c := New(path)
	if path == "" {
		return c, nil
	}

	packages, err := c.backend.load()
	if err != nil {
		return c, err
	}
	if packages != nil {
		c.packages = packages
	}
	return c, nil
}

// Fresh reports whether dir was generated from the same sources, config and
// generator version, and all of its outputs still exist
func (c *Cache) Fresh(dir string, want Entry) bool {
	c.mu.Lock()
	entry, ok := c.packages[dir]
	c.mu.Unlock()

	if !ok || entry.SourceHash != want.SourceHash || entry.ConfigHash != want.ConfigHash || entry.Generator != want.Generator {
		return false
	}
	for _, out := range entry.Outputs {
		if _, err := os.Stat(out); err != nil {
			return false
		}
	}
	return true
}

// Get returns the recorded entry of dir
func (c *Cache) Get(dir string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.packages[dir]
	return entry, ok
}

// Record stores the entry of dir
func (c *Cache) Record(dir string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.Outputs = append([]string(nil), entry.Outputs...)
	sort.Strings(entry.Outputs)
	c.packages[dir] = entry
	c.dirty = true
}

// Forget drops the entry of dir
func (c *Cache) Forget(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.packages[dir]; ok {
		delete(c.packages, dir)
		c.dirty = true
	}
}

// Len returns the number of recorded packages
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packages)
}

// Save writes the cache back to its path if it changed
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" || !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := c.backend.save(c.packages); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
