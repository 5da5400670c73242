// Package pixmap implements the bounded in-memory LRU cache of
// decoded pixel buffers (C4).
package pixmap

import (
	"container/list"
	"sync"

	"github.com/justyntemme/pixcore/internal/codec"
	"github.com/justyntemme/pixcore/internal/debug"
)

// DefaultCap is the default entry-count capacity.
const DefaultCap = 20

type entry struct {
	path       string
	buffer     codec.Buffer
	generation uint64
	element    *list.Element
}

// Cache is a bounded, strict-LRU store of decoded buffers keyed by
// path. Entries carry a generation tag: a Get only returns an entry
// whose generation matches the cache's current generation, but a
// stale-generation entry remains in the LRU list (still occupying a
// capacity slot) until it is evicted or overwritten by Put.
type Cache struct {
	mu         sync.RWMutex
	cache      map[string]*entry
	lru        *list.List
	maxEntries int
	maxBytes   int // 0 disables the byte budget
	bytes      int
	generation uint64
}

// New creates a Cache with the given entry cap. maxBytes of 0 disables
// the optional byte budget; only maxEntries governs eviction.
func New(maxEntries, maxBytes int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCap
	}
	return &Cache{
		cache:      make(map[string]*entry),
		lru:        list.New(),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

// Get returns the cached buffer for path, or a miss if absent or if
// its generation no longer matches the cache's current generation.
func (c *Cache) Get(path string) (codec.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[path]
	if !ok || e.generation != c.generation {
		return codec.Buffer{}, false
	}
	c.lru.MoveToFront(e.element)
	return e.buffer, true
}

// Put inserts or replaces the cached buffer for path under the
// current generation, evicting least-recently-used entries to honor
// the entry cap and, if set, the byte budget.
func (c *Cache) Put(path string, buf codec.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(buf.Pix)

	if e, ok := c.cache[path]; ok {
		c.bytes -= len(e.buffer.Pix)
		e.buffer = buf
		e.generation = c.generation
		c.bytes += size
		c.lru.MoveToFront(e.element)
		c.evictToFit()
		return
	}

	e := &entry{path: path, buffer: buf, generation: c.generation}
	e.element = c.lru.PushFront(e)
	c.cache[path] = e
	c.bytes += size
	c.evictToFit()
}

// evictToFit evicts least-recently-used entries until both the entry
// cap and (if set) the byte budget are satisfied. Caller must hold mu.
func (c *Cache) evictToFit() {
	for c.lru.Len() > c.maxEntries || (c.maxBytes > 0 && c.bytes > c.maxBytes) {
		back := c.lru.Back()
		if back == nil {
			return
		}
		c.removeElement(back)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.lru.Remove(el)
	delete(c.cache, e.path)
	c.bytes -= len(e.buffer.Pix)
	debug.Log(debug.CACHE, "evicted %s", e.path)
}

// Remove drops path from the cache entirely, if present.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.cache[path]; ok {
		c.removeElement(e.element)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*entry)
	c.lru = list.New()
	c.bytes = 0
}

// BumpGeneration advances the cache's current generation. Entries from
// the prior generation become invisible to Get, but stay in the LRU
// list (and so still occupy capacity) until evicted or overwritten.
func (c *Cache) BumpGeneration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	debug.Log(debug.CACHE, "generation bumped to %d", c.generation)
}

// Len returns the number of entries currently held, including any
// invisible stale-generation ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
