package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fenilmodi00/tibia-lookup-backend/models"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 50
	DefaultCacheMaxBytes   = 2 << 20
)

// CacheEntry represents a cached lookup response with the time it was stored
type CacheEntry struct {
	Response *models.CharacterResponse
	StoredAt time.Time
	Cost     int64
}

// IsExpired checks if the cache entry is older than ttl at now
func (ce *CacheEntry) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(ce.StoredAt) >= ttl
}

// CacheStats reports cache occupancy and effectiveness
type CacheStats struct {
	Entries     int           `json:"entries"`
	Bytes       int64         `json:"bytes"`
	MaxEntries  int           `json:"max_entries"`
	MaxBytes    int64         `json:"max_bytes"`
	TTL         time.Duration `json:"ttl"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evictions   int64         `json:"evictions"`
	Expirations int64         `json:"expirations"`
}

// CacheService is the in-memory response cache of one lookup service. Entries expire
// after a fixed TTL and are bounded by entry count and approximate byte cost; when either
// bound is exceeded the least recently used entries are evicted first.
type CacheService struct {
	mutex       sync.Mutex
	lru         *simplelru.LRU[string, *CacheEntry]
	ttl         time.Duration
	maxEntries  int
	maxBytes    int64
	totalBytes  int64
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	now         func() time.Time
}

// NewCacheService creates a cache with default TTL and bounds
func NewCacheService() *CacheService {
	return NewCacheServiceWithConfig(DefaultCacheTTL, DefaultCacheMaxEntries, DefaultCacheMaxBytes)
}

// NewCacheServiceWithConfig creates a cache service with custom configuration
func NewCacheServiceWithConfig(ttl time.Duration, maxEntries int, maxBytes int64) *CacheService {
	return NewCacheServiceWithClock(ttl, maxEntries, maxBytes, time.Now)
}

// NewCacheServiceWithClock creates a cache that reads the current time from now
func NewCacheServiceWithClock(ttl time.Duration, maxEntries int, maxBytes int64, now func() time.Time) *CacheService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxBytes
	}

	cs := &CacheService{
		ttl:        ttl,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		now:        now,
	}
	// The callback runs for every removal path while cs.mutex is held.
	cs.lru, _ = simplelru.NewLRU[string, *CacheEntry](maxEntries, func(_ string, entry *CacheEntry) {
		cs.totalBytes -= entry.Cost
	})
	return cs
}

// Get returns the cached response for name if it is younger than the TTL.
// An expired entry is removed.
func (cs *CacheService) Get(name string) (*models.CharacterResponse, bool) {
	key := CacheKey(name)

	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	entry, exists := cs.lru.Get(key)
	if !exists {
		cs.misses++
		return nil, false
	}
	if entry.IsExpired(cs.now(), cs.ttl) {
		cs.lru.Remove(key)
		cs.expirations++
		cs.misses++
		return nil, false
	}

	cs.hits++
	return entry.Response, true
}

// Put stores response under name, overwriting any previous entry
func (cs *CacheService) Put(name string, response *models.CharacterResponse) {
	if response == nil {
		return
	}
	key := CacheKey(name)
	cost := estimateCost(response)

	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if cost > cs.maxBytes {
		// a response that cannot fit the byte bound is never cached; a stale
		// entry under the same key would otherwise outlive this newer response
		if cs.lru.Remove(key) {
			cs.evictions++
		}
		return
	}

	if previous, exists := cs.lru.Peek(key); exists {
		// Add on an existing key does not fire the eviction callback
		cs.totalBytes -= previous.Cost
	}

	cs.totalBytes += cost
	if evicted := cs.lru.Add(key, &CacheEntry{Response: response, StoredAt: cs.now(), Cost: cost}); evicted {
		cs.evictions++
	}

	for cs.totalBytes > cs.maxBytes {
		if _, _, ok := cs.lru.RemoveOldest(); !ok {
			break
		}
		cs.evictions++
	}
}

// Delete removes the entry for name and reports whether one existed
func (cs *CacheService) Delete(name string) bool {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	return cs.lru.Remove(CacheKey(name))
}

// Contains reports whether an entry exists for name, expired or not, without touching recency
func (cs *CacheService) Contains(name string) bool {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	return cs.lru.Contains(CacheKey(name))
}

// Clear removes all values from cache
func (cs *CacheService) Clear() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.lru.Purge()
	cs.totalBytes = 0
}

// Len returns the number of entries, including expired ones not yet purged
func (cs *CacheService) Len() int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	return cs.lru.Len()
}

// PurgeExpired removes every expired entry and returns how many were removed
func (cs *CacheService) PurgeExpired() int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := cs.now()
	removed := 0
	for _, key := range cs.lru.Keys() {
		entry, ok := cs.lru.Peek(key)
		if ok && entry.IsExpired(now, cs.ttl) {
			cs.lru.Remove(key)
			removed++
		}
	}
	cs.expirations += int64(removed)
	return removed
}

// Stats returns a snapshot of cache statistics
func (cs *CacheService) Stats() CacheStats {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	return CacheStats{
		Entries:     cs.lru.Len(),
		Bytes:       cs.totalBytes,
		MaxEntries:  cs.maxEntries,
		MaxBytes:    cs.maxBytes,
		TTL:         cs.ttl,
		Hits:        cs.hits,
		Misses:      cs.misses,
		Evictions:   cs.evictions,
		Expirations: cs.expirations,
	}
}

// LogStats logs the current cache statistics
func (cs *CacheService) LogStats(logger *logrus.Entry) {
	stats := cs.Stats()
	logger.WithFields(logrus.Fields{
		"entries":     stats.Entries,
		"size":        humanize.Bytes(uint64(stats.Bytes)),
		"max_size":    humanize.Bytes(uint64(stats.MaxBytes)),
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"evictions":   stats.Evictions,
		"expirations": stats.Expirations,
	}).Debug("Cache statistics")
}

// estimateCost approximates the memory held by a response by its JSON size
func estimateCost(response *models.CharacterResponse) int64 {
	encoded, err := json.Marshal(response)
	if err != nil {
		return 1
	}
	return int64(len(encoded))
}
