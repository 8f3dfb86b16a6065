package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// QueryCache is a small LRU of search results with a TTL. Invalidate bumps a
// generation so entries written before an index mutation are never served.
// Get reports the generation it saw; Put with an older generation is dropped,
// which keeps a search that overlapped a mutation out of the cache.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	results   []domain.SearchResult
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, topK int, filter domain.Filter) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(topK)))

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k + "=" + filter[k]))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached results for the key and the current index
// generation. On a miss the generation is what a following Put must carry.
func (c *QueryCache) Get(query string, topK int, filter domain.Filter) ([]domain.SearchResult, uint64, bool) {
	key := cacheKey(query, topK, filter)

	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.indexGen
	entry, exists := c.entries[key]
	if !exists {
		return nil, gen, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != gen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, gen, false
	}

	c.moveToEnd(key)
	return append([]domain.SearchResult(nil), entry.results...), gen, true
}

// Put stores results computed while the index was at generation gen. Nothing
// is stored if the index has changed since.
func (c *QueryCache) Put(query string, topK int, filter domain.Filter, gen uint64, results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.indexGen {
		return
	}

	key := cacheKey(query, topK, filter)
	entry := &cacheEntry{
		results:   append([]domain.SearchResult(nil), results...),
		timestamp: c.now(),
		indexGen:  gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedSearcher serves repeated searches from a QueryCache.
type CachedSearcher struct {
	searcher port.Searcher
	cache    *QueryCache
}

func NewCachedSearcher(searcher port.Searcher, cache *QueryCache) *CachedSearcher {
	return &CachedSearcher{
		searcher: searcher,
		cache:    cache,
	}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.SearchResult, error) {
	results, gen, hit := s.cache.Get(query, k, filter)
	if hit {
		return results, nil
	}

	results, err := s.searcher.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}

	s.cache.Put(query, k, filter, gen, results)
	return results, nil
}

// Invalidate drops every cached result. Call it before and after an index
// mutation.
func (s *CachedSearcher) Invalidate() {
	s.cache.Invalidate()
}
