// Package cache memoizes query result pages under version-stamped keys.
//
// A cached page is keyed by (entity, collection version, canonical
// descriptor key). Because the version is part of the key, a page computed
// against an older collection state can never be served for a newer one:
// stale entries simply stop being addressable and are swept out lazily or
// by the post-commit invalidation sweep.
//
// The cache performs no I/O; it is purely an in-memory accelerator over the
// deterministic query engine.
package cache

import (
	"container/list"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/tabgo/query"
)

// Key addresses one cached result page.
type Key struct {
	Entity     string
	Version    uint64
	Descriptor string
}

// String returns the flat key used for lookup and miss deduplication.
func (k Key) String() string {
	return k.Entity + "\x1f" + strconv.FormatUint(k.Version, 10) + "\x1f" + k.Descriptor
}

// ComputeFunc produces the page for a key on miss (the query engine).
type ComputeFunc func() (query.Page, error)

// ResultCache is a bounded LRU cache of result pages with one LRU list per
// entity. It tolerates concurrent readers and writers; racing misses for
// the same key are collapsed into a single computation, and either racer's
// result is valid since pages are pure functions of (version, descriptor).
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	items    map[Key]*list.Element
	lists    map[string]*list.List // per-entity eviction order

	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key  Key
	page query.Page
}

// DefaultCapacity bounds cached pages per entity when no capacity is
// configured.
const DefaultCapacity = 128

// New creates a result cache holding at most capacity pages per entity.
// capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ResultCache{
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		lists:    make(map[string]*list.List),
	}
}

// GetOrCompute returns the cached page for key, or computes, stores, and
// returns it. Errors from compute are returned without being cached.
func (c *ResultCache) GetOrCompute(key Key, compute ComputeFunc) (query.Page, error) {
	if page, ok := c.get(key); ok {
		return page, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A racing caller may have stored the page between our miss and
		// the flight start.
		if page, ok := c.get(key); ok {
			return page, nil
		}
		page, err := compute()
		if err != nil {
			return query.Page{}, err
		}
		c.set(key, page)
		return page, nil
	})
	if err != nil {
		return query.Page{}, err
	}
	return v.(query.Page), nil
}

// Invalidate drops every entry of the entity whose version is older than
// current. Entries are unreachable by key the moment the version advances;
// this sweep just reclaims their memory eagerly after a commit.
func (c *ResultCache) Invalidate(entity string, current uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lists[entity]
	if !ok {
		return
	}

	var toRemove []*list.Element
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(*entry).key.Version < current {
			toRemove = append(toRemove, e)
		}
	}
	for _, e := range toRemove {
		c.removeElement(entity, e)
	}
}

// Len returns the number of cached pages across all entities.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cumulative hit and miss counters.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) get(key Key) (query.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.lists[key.Entity].MoveToFront(e)
		return e.Value.(*entry).page, true
	}
	c.misses.Add(1)
	return query.Page{}, false
}

func (c *ResultCache) set(key Key, page query.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		// Idempotent overwrite: both writers computed the same pure result.
		c.lists[key.Entity].MoveToFront(e)
		e.Value.(*entry).page = page
		return
	}

	l, ok := c.lists[key.Entity]
	if !ok {
		l = list.New()
		c.lists[key.Entity] = l
	}

	c.items[key] = l.PushFront(&entry{key: key, page: page})

	for l.Len() > c.capacity {
		back := l.Back()
		if back == nil {
			break
		}
		c.removeElement(key.Entity, back)
	}
}

// removeElement drops an element. Caller must hold c.mu.
func (c *ResultCache) removeElement(entity string, e *list.Element) {
	c.lists[entity].Remove(e)
	delete(c.items, e.Value.(*entry).key)
}
