// Package cache memoizes detection and parser-selection decisions by content
// hash. It is strictly an optimization: disabling it changes latency and
// hit-rate metrics only, never the results of extraction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fintext/fatura/internal/model"
)

const (
	// DefaultTTL is how long an entry stays valid.
	DefaultTTL = time.Hour
	// DefaultMaxSize bounds each of the two mappings independently.
	DefaultMaxSize = 1000

	// hashSampleLen limits hashing to the head of the normalized text, which
	// is enough to identify a document and keeps hashing cheap.
	hashSampleLen = 500
)

type entry struct {
	insertedAt time.Time
	lastAccess time.Time
	value      any
}

// Cache holds two independent TTL'd mappings keyed by a content hash: one for
// detection results, one for parser choices. Expired entries are treated as
// misses and evicted lazily on read.
type Cache struct {
	detections map[string]*entry
	parsers    map[string]*entry
	ttl        time.Duration
	maxSize    int
	enabled    bool
	hits       int64
	misses     int64
	mu         sync.Mutex
}

// New creates a cache. Zero ttl or maxSize fall back to the defaults.
func New(ttl time.Duration, maxSize int, enabled bool) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		detections: make(map[string]*entry),
		parsers:    make(map[string]*entry),
		ttl:        ttl,
		maxSize:    maxSize,
		enabled:    enabled,
	}
}

// Key hashes document text into the cache key: SHA-256 over the lowercased,
// whitespace-collapsed head of the text.
func Key(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if len(normalized) > hashSampleLen {
		normalized = normalized[:hashSampleLen]
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Enabled reports whether the cache participates in lookups at all.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// GetDetection returns the cached detection result for the text, if any.
func (c *Cache) GetDetection(text string) (model.DetectionResult, bool) {
	if !c.Enabled() {
		return model.DetectionResult{}, false
	}
	v, ok := c.get(c.detections, Key(text))
	if !ok {
		return model.DetectionResult{}, false
	}
	return v.(model.DetectionResult), true
}

// SetDetection stores a detection result for the text.
func (c *Cache) SetDetection(text string, result model.DetectionResult) {
	if !c.Enabled() {
		return
	}
	c.set(c.detections, Key(text), result)
}

// GetParserChoice returns the cached parser selection for the text, if any.
func (c *Cache) GetParserChoice(text string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	v, ok := c.get(c.parsers, Key(text))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetParserChoice stores the parser selected for the text.
func (c *Cache) SetParserChoice(text, parserName string) {
	if !c.Enabled() {
		return
	}
	c.set(c.parsers, Key(text), parserName)
}

func (c *Cache) get(m map[string]*entry, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := m[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if time.Since(e.insertedAt) > c.ttl {
		delete(m, key)
		c.misses++
		return nil, false
	}

	e.lastAccess = time.Now()
	c.hits++
	return e.value, true
}

// set inserts write-through. When the mapping is full it bulk-evicts the
// ceil(10% of max) entries with the oldest last access, rather than strict
// per-entry LRU.
func (c *Cache) set(m map[string]*entry, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := m[key]; !exists && len(m) >= c.maxSize {
		c.evictOldest(m)
	}

	now := time.Now()
	m[key] = &entry{insertedAt: now, lastAccess: now, value: value}
}

func (c *Cache) evictOldest(m map[string]*entry) {
	toRemove := (c.maxSize + 9) / 10

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m[keys[i]].lastAccess.Before(m[keys[j]].lastAccess)
	})

	if toRemove > len(keys) {
		toRemove = len(keys)
	}
	for _, k := range keys[:toRemove] {
		delete(m, k)
	}
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Enabled          bool    `json:"enabled"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	DetectionEntries int     `json:"detection_entries"`
	ParserEntries    int     `json:"parser_entries"`
	MaxSize          int     `json:"max_size"`
	TTLSeconds       int     `json:"ttl_seconds"`
}

// Stats returns current counters and sizes.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}

	return Stats{
		Enabled:          c.enabled,
		Hits:             c.hits,
		Misses:           c.misses,
		HitRate:          rate,
		DetectionEntries: len(c.detections),
		ParserEntries:    len(c.parsers),
		MaxSize:          c.maxSize,
		TTLSeconds:       int(c.ttl.Seconds()),
	}
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detections = make(map[string]*entry)
	c.parsers = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}
