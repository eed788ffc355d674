package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the cache payload format changes
const shaderCacheSchemaVersion uint16 = 1

const shaderCacheFile = "shaders.mp"

// ShaderCache remembers, per path, the hash of the last normalized output so
// files already in canonical form are not normalized again.
// Thread-safe for concurrent access.
type ShaderCache struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]ShaderCacheEntry
	dirty   bool
}

// ShaderCacheEntry is what the cache stores for one file.
type ShaderCacheEntry struct {
	Hash      [32]byte
	Directive string
	Size      int64
}

type shaderCachePayload struct {
	Schema  uint16
	Entries map[string]ShaderCacheEntry
}

// CacheDir returns the default cache location for app ($XDG_CACHE_HOME/app
// or ~/.cache/app).
func CacheDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

// OpenShaderCache opens (creating if needed) the cache stored in dir.
// A missing, stale or unreadable payload starts an empty cache.
func OpenShaderCache(dir string) (*ShaderCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &ShaderCache{dir: dir, entries: make(map[string]ShaderCacheEntry)}

	f, err := os.Open(c.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	defer f.Close()

	var payload shaderCachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		// битый кэш просто игнорируем
		return c, nil
	}
	if payload.Schema == shaderCacheSchemaVersion && payload.Entries != nil {
		c.entries = payload.Entries
	}
	return c, nil
}

func (c *ShaderCache) path() string {
	return filepath.Join(c.dir, shaderCacheFile)
}

// Dir returns the directory backing the cache.
func (c *ShaderCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// Get returns the entry for path.
func (c *ShaderCache) Get(path string) (ShaderCacheEntry, bool) {
	if c == nil {
		return ShaderCacheEntry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(path)]
	return e, ok
}

// Put records the entry for path.
func (c *ShaderCache) Put(path string, e ShaderCacheEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(path)] = e
	c.dirty = true
}

// Len returns the number of cached entries.
func (c *ShaderCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save writes the cache if anything changed since it was opened.
func (c *ShaderCache) Save() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to remove temp file: %v\n", rmErr)
		}
	}()

	payload := shaderCachePayload{Schema: shaderCacheSchemaVersion, Entries: c.entries}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	if err := os.Rename(tmpName, c.path()); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// DropAll removes the cache directory.
func DropAll(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}
	// тривиально: переименуем каталог и удалим
	old := dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(path)
}
