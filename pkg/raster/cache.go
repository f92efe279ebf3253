package raster

import (
	"container/list"
	"sync"
)

// DefaultCacheBytes is the default WindowCache capacity
const DefaultCacheBytes = 256 << 20

// WindowCache is a byte-bounded LRU of window copies keyed by the
// requested rectangle. It is safe for concurrent use.
type WindowCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	hits     uint64
	misses   uint64

	ll    *list.List
	items map[Window]*list.Element
}

type cacheEntry struct {
	key  Window
	tile *Tile
}

// NewWindowCache creates a cache holding at most maxBytes of tile data
func NewWindowCache(maxBytes int64) *WindowCache {
	return &WindowCache{
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[Window]*list.Element),
	}
}

// Get returns the cached tile for key and marks it most recently used.
// The returned tile is shared with the cache and must not be modified.
func (c *WindowCache) Get(key Window) (*Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).tile, true
}

// Put stores t under key, evicting least recently used entries to make
// room. Empty tiles and tiles larger than the whole capacity are not stored.
func (c *WindowCache) Put(key Window, t *Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return
	}

	size := int64(len(t.Data))
	if size == 0 || size > c.maxBytes {
		return
	}
	for c.curBytes+size > c.maxBytes && c.ll.Len() > 0 {
		c.removeElement(c.ll.Back())
	}

	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, tile: t})
	c.curBytes += size
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *WindowCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[Window]*list.Element)
	c.curBytes = 0
}

// Size returns the bytes currently held
func (c *WindowCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Capacity returns the configured maximum
func (c *WindowCache) Capacity() int64 { return c.maxBytes }

// Len returns the number of cached windows
func (c *WindowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Hits returns the number of successful lookups
func (c *WindowCache) Hits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Misses returns the number of failed lookups
func (c *WindowCache) Misses() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

func (c *WindowCache) removeElement(el *list.Element) {
	e := c.ll.Remove(el).(*cacheEntry)
	delete(c.items, e.key)
	c.curBytes -= int64(len(e.tile.Data))
}

// CachedStore serves WindowCopy from a WindowCache. Every call still
// returns storage owned by the caller.
type CachedStore struct {
	Store
	cache *WindowCache
}

// NewCachedStore wraps s with cache
func NewCachedStore(s Store, cache *WindowCache) *CachedStore {
	return &CachedStore{Store: s, cache: cache}
}

// Cache returns the underlying cache
func (c *CachedStore) Cache() *WindowCache { return c.cache }

// WindowCopy returns a cached copy when one exists
func (c *CachedStore) WindowCopy(x, y, width, height int) *Tile {
	key := Window{X: x, Y: y, Width: width, Height: height}
	if t, ok := c.cache.Get(key); ok {
		return t.Clone()
	}

	t := c.Store.WindowCopy(x, y, width, height)
	if !t.Empty() {
		c.cache.Put(key, t.Clone())
	}
	return t
}
