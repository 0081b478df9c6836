package services

import (
	"sync"
	"time"
)

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

func (e *cacheEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// QuoteCache is a small in-memory TTL cache in front of the hot stock read
// paths. Entries are evicted FIFO by expiry once maxSize is reached, and a
// background sweep removes expired entries.
type QuoteCache struct {
	cache      map[string]*cacheEntry
	mutex      sync.RWMutex
	defaultTTL time.Duration
	maxSize    int
}

// NewQuoteCache creates a cache with the given TTL and size cap and starts
// the cleanup goroutine.
func NewQuoteCache(defaultTTL time.Duration, maxSize int) *QuoteCache {
	qc := &QuoteCache{
		cache:      make(map[string]*cacheEntry),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}

	go qc.cleanupExpired()

	return qc
}

// Get retrieves a value, reporting whether a live entry was found.
func (qc *QuoteCache) Get(key string) (interface{}, bool) {
	qc.mutex.RLock()
	defer qc.mutex.RUnlock()

	entry, exists := qc.cache[key]
	if !exists || entry.expired() {
		return nil, false
	}
	return entry.data, true
}

// Set stores a value with the default TTL.
func (qc *QuoteCache) Set(key string, value interface{}) {
	qc.mutex.Lock()
	defer qc.mutex.Unlock()

	if len(qc.cache) >= qc.maxSize {
		qc.evictOldest()
	}

	qc.cache[key] = &cacheEntry{
		data:      value,
		expiresAt: time.Now().Add(qc.defaultTTL),
	}
}

// Invalidate removes a single key.
func (qc *QuoteCache) Invalidate(key string) {
	qc.mutex.Lock()
	defer qc.mutex.Unlock()

	delete(qc.cache, key)
}

// Clear removes all entries.
func (qc *QuoteCache) Clear() {
	qc.mutex.Lock()
	defer qc.mutex.Unlock()

	qc.cache = make(map[string]*cacheEntry)
}

// Size returns the current entry count.
func (qc *QuoteCache) Size() int {
	qc.mutex.RLock()
	defer qc.mutex.RUnlock()
	return len(qc.cache)
}

// evictOldest removes the entry closest to expiry. Caller holds the lock.
func (qc *QuoteCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range qc.cache {
		if oldestKey == "" || entry.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.expiresAt
		}
	}

	if oldestKey != "" {
		delete(qc.cache, oldestKey)
	}
}

func (qc *QuoteCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		qc.mutex.Lock()
		for key, entry := range qc.cache {
			if entry.expired() {
				delete(qc.cache, key)
			}
		}
		qc.mutex.Unlock()
	}
}
