package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// CacheEntry is one cached translation.
type CacheEntry struct {
	Hash        string    `json:"hash"`
	TargetLang  string    `json:"target_lang"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk layout of a Cache.
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// Cache stores translations per target language, keyed by a hash of the
// original text. An empty path keeps it in memory only.
type Cache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewCache creates a cache persisted at path.
func NewCache(path string) *Cache {
	return &Cache{path: path, entries: make(map[string]CacheEntry)}
}

// Key computes the cache key of text in targetLang (SHA256).
func Key(text, targetLang string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(targetLang) + "\x00" + strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached translation of text.
func (c *Cache) Get(text, targetLang string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key(text, targetLang)]
	return e.Translation, ok
}

// Set stores a translation; empty translations are not cached.
func (c *Cache) Set(text, targetLang, translation string) {
	if translation == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key(text, targetLang)
	c.entries[key] = CacheEntry{
		Hash:        key,
		TargetLang:  targetLang,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Load reads the cache file. A missing file leaves the cache empty.
func (c *Cache) Load() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrTranslation, "failed to read translation cache", err)
	}
	var file CacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return types.NewAppError(types.ErrTranslation, "failed to parse translation cache", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CacheEntry, len(file.Entries))
	for _, e := range file.Entries {
		c.entries[e.Hash] = e
	}
	return nil
}

// Save writes the cache file.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	file := CacheFile{Version: "1.0", Entries: make([]CacheEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		file.Entries = append(file.Entries, e)
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrTranslation, "failed to marshal translation cache", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return types.NewAppError(types.ErrTranslation, "failed to create cache directory", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return types.NewAppError(types.ErrTranslation, "failed to write translation cache", err)
	}
	return nil
}

// CachedTranslator answers from a Cache and forwards only the misses.
type CachedTranslator struct {
	next  Translator
	cache *Cache
}

// WithCache wraps next with cache.
func WithCache(next Translator, cache *Cache) *CachedTranslator {
	return &CachedTranslator{next: next, cache: cache}
}

// Translate implements Translator.
func (c *CachedTranslator) Translate(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	out := make([]string, len(texts))
	var missIdx []int
	var misses []string
	for i, text := range texts {
		if t, ok := c.cache.Get(text, targetLang); ok {
			out[i] = t
			continue
		}
		missIdx = append(missIdx, i)
		misses = append(misses, text)
	}
	logger.Debug("translation cache lookup",
		logger.Int("hits", len(texts)-len(misses)),
		logger.Int("misses", len(misses)))
	if len(misses) == 0 {
		return out, nil
	}

	got, err := c.next.Translate(ctx, misses, targetLang)
	for i, idx := range missIdx {
		if i < len(got) {
			out[idx] = got[i]
			c.cache.Set(misses[i], targetLang, got[i])
		}
	}
	return out, err
}
