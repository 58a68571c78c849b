// Package cache stores rendered documents on disk so that unchanged sources
// are not compiled again by build and dev.
//
// Entries are keyed by a hash of the source and of the options that shaped
// the output. Only rendered HTML is cached; evaluation state never is.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexVersion = "mdxlite-1"

// Cache is a size-bounded disk cache of rendered documents. Entries are
// evicted least recently used first.
type Cache struct {
	mu      sync.Mutex
	dir     string
	index   *Index
	maxSize int64
	maxAge  time.Duration
	stats   Stats
	dirty   bool
	logger  *slog.Logger
	now     func() time.Time
}

// Index is the on-disk table of entries
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry is one cached document
type Entry struct {
	Key        string    `json:"key"`
	File       string    `json:"file"`
	Source     string    `json:"source,omitempty"`
	Size       int64     `json:"size"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"last_access"`
	Hits       int       `json:"hits"`
}

// Stats tracks cache performance
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int64 `json:"size"`
	Entries   int   `json:"entries"`
}

// Config holds cache configuration
type Config struct {
	Dir     string        // Cache directory (default: user cache dir + /mdxlite)
	MaxSize int64         // Maximum size of cached documents in bytes, 0 for no limit
	MaxAge  time.Duration // Maximum entry age, 0 for no limit
	Logger  *slog.Logger
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		Dir:     filepath.Join(dir, "mdxlite"),
		MaxSize: 256 << 20,
		MaxAge:  7 * 24 * time.Hour,
	}
}

// Open opens the cache in cfg.Dir, creating it if needed. Expired entries
// are dropped. A missing or unreadable index starts an empty cache.
func Open(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		def := DefaultConfig()
		cfg.Dir = def.Dir
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(filepath.Join(cfg.Dir, "documents"), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	c := &Cache{
		dir:     cfg.Dir,
		maxSize: cfg.MaxSize,
		maxAge:  cfg.MaxAge,
		logger:  logger,
		now:     time.Now,
	}
	if err := c.loadIndex(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cache index unreadable, starting fresh", "dir", cfg.Dir, "error", err)
		}
		c.index = newIndex()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return c, nil
}

func newIndex() *Index {
	return &Index{Version: indexVersion, Entries: make(map[string]*Entry)}
}

// Key derives the cache key of a document from its source and a fingerprint
// of the options that affect its output.
func Key(source []byte, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the JSON encoding of v. Equal options give equal
// fingerprints.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint options: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached document for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.expired(entry) {
		c.removeLocked(key, entry)
		c.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(c.path(entry))
	if err != nil {
		c.logger.Warn("cached document unreadable", "key", key, "error", err)
		c.removeLocked(key, entry)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = c.now()
	entry.Hits++
	c.stats.Hits++
	c.dirty = true
	return data, true
}

// Put stores a rendered document. source names the file it came from, so
// that InvalidateSource can drop it; it may be empty.
func (c *Cache) Put(key string, data []byte, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(data))
	if c.maxSize > 0 && size > c.maxSize {
		return fmt.Errorf("document of %d bytes exceeds cache size %d", size, c.maxSize)
	}
	if old, ok := c.index.Entries[key]; ok {
		c.removeLocked(key, old)
	}
	c.evictLocked(size)

	entry := &Entry{
		Key:        key,
		File:       fileName(key),
		Source:     source,
		Size:       size,
		Created:    c.now(),
		LastAccess: c.now(),
	}
	if err := writeFile(c.path(entry), data); err != nil {
		return fmt.Errorf("write cached document: %w", err)
	}

	c.index.Entries[key] = entry
	c.stats.Size += size
	c.stats.Entries = len(c.index.Entries)
	return c.saveLocked()
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		return nil
	}
	c.removeLocked(key, entry)
	return c.saveLocked()
}

// InvalidateSource removes every entry rendered from the file at path and
// returns how many were removed.
func (c *Cache) InvalidateSource(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.index.Entries {
		if entry.Source == path {
			c.removeLocked(key, entry)
			count++
		}
	}
	if count > 0 {
		if err := c.saveLocked(); err != nil {
			c.logger.Warn("save cache index", "error", err)
		}
	}
	return count
}

// Prune removes expired entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.pruneLocked()
	if n > 0 {
		if err := c.saveLocked(); err != nil {
			c.logger.Warn("save cache index", "error", err)
		}
	}
	return n
}

// Clear removes all entries.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := filepath.Join(c.dir, "documents")
	if err := os.RemoveAll(docs); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if err := os.MkdirAll(docs, 0o755); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	c.index = newIndex()
	c.stats = Stats{}
	return c.saveLocked()
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close writes pending access times to the index.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	return c.saveLocked()
}

func (c *Cache) path(e *Entry) string {
	return filepath.Join(c.dir, "documents", e.File)
}

func (c *Cache) expired(e *Entry) bool {
	return c.maxAge > 0 && c.now().Sub(e.Created) > c.maxAge
}

func (c *Cache) pruneLocked() int {
	n := 0
	for key, entry := range c.index.Entries {
		if c.expired(entry) {
			c.removeLocked(key, entry)
			n++
		}
	}
	return n
}

// evictLocked drops least recently used entries until needed more bytes
// fit.
func (c *Cache) evictLocked(needed int64) {
	if c.maxSize <= 0 {
		return
	}
	for c.stats.Size+needed > c.maxSize && len(c.index.Entries) > 0 {
		var victim *Entry
		for _, entry := range c.index.Entries {
			if victim == nil || entry.LastAccess.Before(victim.LastAccess) {
				victim = entry
			}
		}
		c.removeLocked(victim.Key, victim)
		c.stats.Evictions++
		c.logger.Debug("cache eviction", "key", victim.Key, "source", victim.Source)
	}
}

func (c *Cache) removeLocked(key string, e *Entry) {
	if err := os.Remove(c.path(e)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("remove cached document", "path", c.path(e), "error", err)
	}
	delete(c.index.Entries, key)
	c.stats.Size -= e.Size
	c.stats.Entries = len(c.index.Entries)
	c.dirty = true
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion {
		return fmt.Errorf("index version %q, want %q", index.Version, indexVersion)
	}
	if index.Entries == nil {
		index.Entries = make(map[string]*Entry)
	}

	c.index = &index
	for _, entry := range index.Entries {
		c.stats.Size += entry.Size
	}
	c.stats.Entries = len(index.Entries)
	return nil
}

func (c *Cache) saveLocked() error {
	c.index.Updated = c.now()
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(c.dir, "index.json"), data); err != nil {
		return fmt.Errorf("save cache index: %w", err)
	}
	c.dirty = false
	return nil
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".html"
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
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
