// Package cache keeps recently computed curved MPR volumes in memory,
// bounded by both an entry count and an estimated memory ceiling.
package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"curvedmpr/internal/models"
)

// Default limits
const (
	DefaultMaxMemoryBytes = 512 << 20
	DefaultMaxEntries     = 50
)

// ErrEntryTooLarge is returned when one entry exceeds the whole memory ceiling
var ErrEntryTooLarge = errors.New("cache entry exceeds memory limit")

// Stats is a snapshot of cache usage
type Stats struct {
	Entries       int     `json:"entries"`
	MaxEntries    int     `json:"maxEntries"`
	MemoryUsed    int64   `json:"memoryUsed"`
	MemoryLimit   int64   `json:"memoryLimit"`
	MemoryPercent float64 `json:"memoryPercent"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hitRate"`
	Evictions     uint64  `json:"evictions"`
}

type entry struct {
	volume     *models.CurvedMPRVolume
	size       int64
	lastAccess time.Time
	seq        uint64
}

// ResultCache is an LRU cache of curved MPR volumes. A single mutex guards
// the check-evict-insert sequence and access bookkeeping.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	memoryUsed int64
	seq        uint64

	maxMemory  int64
	maxEntries int

	hits      uint64
	misses    uint64
	evictions uint64

	now    func() time.Time
	logger *zap.SugaredLogger
}

// New creates a cache. Non-positive limits select the defaults.
func New(maxMemoryBytes int64, maxEntries int, logger *zap.SugaredLogger) *ResultCache {
	if maxMemoryBytes <= 0 {
		maxMemoryBytes = DefaultMaxMemoryBytes
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ResultCache{
		entries:    make(map[string]*entry),
		maxMemory:  maxMemoryBytes,
		maxEntries: maxEntries,
		now:        time.Now,
		logger:     logger,
	}
}

// EstimateSize approximates the memory held by a volume, rounded up to 1 KiB
func EstimateSize(v *models.CurvedMPRVolume) int64 {
	if v == nil {
		return 1024
	}
	raw := int64(2*len(v.Data) + 48*len(v.Centerline) + 256)
	return (raw + 1023) / 1024 * 1024
}

// Get returns the cached volume for key and records a hit or miss
func (c *ResultCache) Get(key string) (*models.CurvedMPRVolume, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.touch(e)
	return e.volume, true
}

// Peek returns the volume stored under key without counting a hit or miss.
// A found entry still becomes the most recently used.
func (c *ResultCache) Peek(key string) (*models.CurvedMPRVolume, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(e)
	return e.volume, true
}

// Has reports whether key is cached without touching statistics or recency
func (c *ResultCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores volume under key, evicting least recently accessed entries
// until both the entry and memory limits hold.
func (c *ResultCache) Set(key string, volume *models.CurvedMPRVolume) error {
	size := EstimateSize(volume)

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxMemory {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrEntryTooLarge, size, c.maxMemory)
	}
	if old, ok := c.entries[key]; ok {
		c.memoryUsed -= old.size
		delete(c.entries, key)
	}

	for len(c.entries) > 0 && (len(c.entries)+1 > c.maxEntries || c.memoryUsed+size > c.maxMemory) {
		c.evictOldest()
	}

	e := &entry{volume: volume, size: size}
	c.touch(e)
	c.entries[key] = e
	c.memoryUsed += size
	return nil
}

// Delete removes key and reports whether it was present
func (c *ResultCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.memoryUsed -= e.size
	delete(c.entries, key)
	return true
}

// Clear drops every entry. Statistics are kept.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.memoryUsed = 0
}

// Stats returns a snapshot of the cache counters
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:     len(c.entries),
		MaxEntries:  c.maxEntries,
		MemoryUsed:  c.memoryUsed,
		MemoryLimit: c.maxMemory,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
	s.MemoryPercent = float64(c.memoryUsed) / float64(c.maxMemory) * 100
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *ResultCache) touch(e *entry) {
	c.seq++
	e.seq = c.seq
	e.lastAccess = c.now()
}

// evictOldest removes the entry with the oldest access. Caller holds mu.
func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldest *entry
	for k, e := range c.entries {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) ||
			(e.lastAccess.Equal(oldest.lastAccess) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldest == nil {
		return
	}
	c.memoryUsed -= oldest.size
	delete(c.entries, oldestKey)
	c.evictions++
	c.logger.Debugw("evicted cached volume", "key", oldestKey, "bytes", oldest.size)
}
