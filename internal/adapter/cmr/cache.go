package cmr

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
)

// CachedFinder wraps a GranuleFinder with an in-memory LRU cache over
// download URL lookups. Fire boundaries change rarely, so repeated
// queries for the same box and window are the common case.
type CachedFinder struct {
	inner   GranuleFinder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFinder creates a cache decorator around a finder.
func NewCachedFinder(inner GranuleFinder, maxEntries int, metrics *observability.Metrics) *CachedFinder {
	return &CachedFinder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFinder) DownloadURLs(ctx context.Context, q Query, maxResults int) ([]string, error) {
	key := queryKey(q, maxResults)
	if urls, ok := c.cache.get(key); ok {
		c.metrics.GranuleCache.WithLabelValues("hit").Inc()
		return urls, nil
	}
	c.metrics.GranuleCache.WithLabelValues("miss").Inc()

	urls, err := c.inner.DownloadURLs(ctx, q, maxResults)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so freshly published granules show up
	// on retry.
	if len(urls) > 0 {
		c.cache.put(key, urls)
	}
	return urls, nil
}

// GranuleCount passes through uncached; counts are cheap single-entry
// requests.
func (c *CachedFinder) GranuleCount(ctx context.Context, q Query) (int, error) {
	return c.inner.GranuleCount(ctx, q)
}

func queryKey(q Query, maxResults int) string {
	return fmt.Sprintf("%g,%g,%g,%g|%d|%d|%d",
		q.Box.MinLon, q.Box.MinLat, q.Box.MaxLon, q.Box.MaxLat,
		q.Start.Unix(), q.End.Unix(), maxResults)
}

// lruCache is a simple thread-safe LRU cache for URL lists.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	head       *cacheEntry // most recently used
	tail       *cacheEntry // least recently used
}

type cacheEntry struct {
	key   string
	value []string
	prev  *cacheEntry
	next  *cacheEntry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
	}
}

func (c *lruCache) get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &cacheEntry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *cacheEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *cacheEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
