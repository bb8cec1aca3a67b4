package cache

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/hupe1980/segkv/internal/resource"
)

// LRUBlockCache holds blob blocks up to a byte capacity and evicts the
// least recently read block first. Blocks are indexed by blob name so that
// a rewrite of the metatable or filter drops its blocks without a scan.
type LRUBlockCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	lru      *simplelru.LRU[Key, []byte]
	byName   map[string]map[Key]struct{}
	rc       *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRUBlockCache returns a cache of capacity bytes. Cached bytes are also
// reserved from rc, which may be nil.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRUBlockCache {
	c := &LRUBlockCache{
		capacity: capacity,
		byName:   make(map[string]map[Key]struct{}),
		rc:       rc,
	}
	// Bounded by bytes below, not by entry count.
	c.lru, _ = simplelru.NewLRU[Key, []byte](math.MaxInt, c.evicted)
	return c
}

func (c *LRUBlockCache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set stores data under key. A block that exceeds the capacity, or that
// the memory budget cannot hold after eviction, is dropped.
func (c *LRUBlockCache) Set(key Key, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	n := int64(len(data))
	if n > c.capacity {
		return
	}
	for c.size+n > c.capacity {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
	if c.rc.Reserve(resource.PoolCache, n) != nil {
		return
	}

	c.lru.Add(key, data)
	keys := c.byName[key.Name]
	if keys == nil {
		keys = make(map[Key]struct{})
		c.byName[key.Name] = keys
	}
	keys[key] = struct{}{}
	c.size += n
}

func (c *LRUBlockCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byName[name] {
		c.lru.Remove(key)
	}
}

func (c *LRUBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRUBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached blocks.
func (c *LRUBlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// evicted runs under c.mu for every block leaving the LRU.
func (c *LRUBlockCache) evicted(key Key, data []byte) {
	if keys := c.byName[key.Name]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byName, key.Name)
		}
	}
	n := int64(len(data))
	c.size -= n
	c.rc.Release(resource.PoolCache, n)
}
