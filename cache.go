package sbtable

import (
	"container/list"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// CacheStats expose cache effectiveness counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// lruCache is the shared core of BlockCache and TableCache: a bounded
// cache with strict LRU eviction, charge-based capacity accounting and
// at most one concurrent loader per key.
type lruCache[V any] struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	ll       *list.List
	items    map[string]*list.Element
	group    singleflight.Group
	stats    CacheStats
	onEvict  func(V)
}

type lruEntry[V any] struct {
	key    string
	value  V
	charge int64
}

func newLRUCache[V any](capacity int64, onEvict func(V)) *lruCache[V] {
	return &lruCache[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		onEvict:  onEvict,
	}
}

// find returns the cached value for key, touching its recency.
func (c *lruCache[V]) find(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		c.stats.Hits++
		return el.Value.(*lruEntry[V]).value, true
	}
	c.stats.Misses++

	var zero V
	return zero, false
}

// load returns the value for key, invoking loader on a miss. Concurrent
// callers for the same key share a single loader invocation and its
// outcome. Nothing is inserted when the loader fails.
func (c *lruCache[V]) load(key string, charge func(V) int64, loader func() (V, error)) (V, error) {
	if v, ok := c.find(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.find(key); ok {
			return v, nil
		}
		v, err := loader()
		if err != nil {
			return nil, errors.Wrap(err, "sbtable: cache load failed")
		}
		c.insert(key, v, charge(v))
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *lruCache[V]) insert(key string, v V, charge int64) {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return
	}

	el := c.ll.PushFront(&lruEntry[V]{key: key, value: v, charge: charge})
	c.items[key] = el
	c.used += charge

	var evicted []V
	for c.used > c.capacity && c.ll.Len() > 1 {
		last := c.ll.Back()
		ent := last.Value.(*lruEntry[V])
		c.ll.Remove(last)
		delete(c.items, ent.key)
		c.used -= ent.charge
		c.stats.Evictions++
		if c.onEvict != nil {
			evicted = append(evicted, ent.value)
		}
	}
	c.mu.Unlock()

	for _, v := range evicted {
		c.onEvict(v)
	}
}

// flushAll drops every entry. Callers holding values keep them alive.
func (c *lruCache[V]) flushAll() {
	c.mu.Lock()
	var evicted []V
	if c.onEvict != nil {
		for el := c.ll.Front(); el != nil; el = el.Next() {
			evicted = append(evicted, el.Value.(*lruEntry[V]).value)
		}
	}
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.used = 0
	c.mu.Unlock()

	for _, v := range evicted {
		c.onEvict(v)
	}
}

func (c *lruCache[V]) statsSnapshot() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// --------------------------------------------------------------------

// BlockCache is a bounded LRU cache of decoded blocks, keyed by file
// identity and block offset. Cursors holding a block keep it alive past
// eviction.
type BlockCache struct {
	c *lruCache[*block]
}

// NewBlockCache creates a block cache with a capacity in bytes.
func NewBlockCache(capacity int64) *BlockCache {
	return &BlockCache{c: newLRUCache[*block](capacity, nil)}
}

// Stats returns a snapshot of the cache counters.
func (c *BlockCache) Stats() CacheStats { return c.c.statsSnapshot() }

// Flush drops all cached blocks.
func (c *BlockCache) Flush() { c.c.flushAll() }

func (c *BlockCache) load(fileID uint64, h BlockHandle, loader func() (*block, error)) (*block, error) {
	return c.c.load(blockCacheKey(fileID, h.Offset), (*block).charge, loader)
}

func blockCacheKey(fileID, offset uint64) string {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:], fileID)
	binary.LittleEndian.PutUint64(b[8:], offset)
	return string(b[:])
}

// --------------------------------------------------------------------

// TableCache is a bounded LRU cache of open tables, keyed by file name.
// Evicting a table drops the cache's reference; the underlying file is
// closed once no cursor pins the table.
type TableCache struct {
	c *lruCache[*Table]
}

// NewTableCache creates a table cache holding up to capacity open tables.
func NewTableCache(capacity int) *TableCache {
	return &TableCache{c: newLRUCache[*Table](int64(capacity), func(t *Table) { t.decRef() })}
}

// Stats returns a snapshot of the cache counters.
func (c *TableCache) Stats() CacheStats { return c.c.statsSnapshot() }

// Flush drops all cached tables.
func (c *TableCache) Flush() { c.c.flushAll() }

func (c *TableCache) load(name string, loader func() (*Table, error)) (*Table, error) {
	return c.c.load(name, func(*Table) int64 { return 1 }, loader)
}
