package engine

import (
	"fmt"
	"sync"

	"github.com/hupe1980/tabgo/record"
)

// Snapshot is an immutable view of a collection at one version.
//
// Records are in insertion order and must be treated as read-only. Because
// committed records are never mutated in place, a snapshot stays valid after
// later commits; it simply describes an older version.
type Snapshot struct {
	Entity  string
	Version uint64
	Records []record.Record
}

// Collection holds all live records of one entity type in insertion order,
// together with its uniqueness index and version stamp.
//
// Reads (Get, Snapshot, Version, Len) are safe for concurrent use. The
// *Locked mutators must only be called by the Coordinator with c.mu held, so
// that record changes and the version bump of one commit land atomically
// with respect to readers: a snapshot at version V always observes exactly
// the commits up to V.
type Collection struct {
	mu     sync.RWMutex
	entity string
	schema *record.Schema

	store Store[record.Record]
	order []uint64 // live IDs in insertion order

	// unique field -> value key -> owning record ID.
	// Null values are not indexed; uniqueness applies to present values only.
	unique map[string]map[string]uint64

	version uint64
	nextID  uint64
	nextSeq uint64

	// snap caches the insertion-ordered record slice between mutations.
	// nil means dirty.
	snap []record.Record
}

// NewCollection creates an empty collection for the given schema.
func NewCollection(schema *record.Schema) *Collection {
	c := &Collection{
		entity: schema.Entity,
		schema: schema,
		store:  NewMapStore[record.Record](),
		unique: make(map[string]map[string]uint64),
	}
	for _, f := range schema.UniqueKeys {
		c.unique[f] = make(map[string]uint64)
	}
	return c
}

// Entity returns the collection's entity name.
func (c *Collection) Entity() string { return c.entity }

// Schema returns the collection's schema.
func (c *Collection) Schema() *record.Schema { return c.schema }

// Version returns the current version stamp. It advances on every committed
// mutation and is never reused.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Len returns the number of live records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// Get retrieves a record by ID.
func (c *Collection) Get(id uint64) (record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Get(id)
}

// Snapshot captures the collection state at its current version.
//
// The record slice is cached between mutations, so repeated snapshots of an
// unchanged collection are cheap.
func (c *Collection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap == nil {
		byID, _ := c.store.BatchGet(c.order)
		snap := make([]record.Record, 0, len(c.order))
		for _, id := range c.order {
			if r, ok := byID[id]; ok {
				snap = append(snap, r)
			}
		}
		c.snap = snap
	}
	return Snapshot{Entity: c.entity, Version: c.version, Records: c.snap}
}

// SetFloors advances the ID and Seq floors so future inserts skip values at
// or below the given ones. Used on restore: replayed history may contain
// deleted records whose IDs must never be handed out again.
func (c *Collection) SetFloors(id, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > c.nextID {
		c.nextID = id
	}
	if seq > c.nextSeq {
		c.nextSeq = seq
	}
}

// getLocked retrieves a record by ID. Caller must hold c.mu.
func (c *Collection) getLocked(id uint64) (record.Record, bool) {
	return c.store.Get(id)
}

// uniqueOwnerLocked returns the ID owning the given unique field value, if
// any. Caller must hold c.mu.
func (c *Collection) uniqueOwnerLocked(field string, v record.Value) (uint64, bool) {
	byValue, ok := c.unique[field]
	if !ok {
		return 0, false
	}
	id, ok := byValue[v.Key()]
	return id, ok
}

// insertLocked commits a new record with a fresh ID and returns it.
// Caller must hold c.mu and must have validated the document and checked
// uniqueness.
func (c *Collection) insertLocked(doc record.Document) record.Record {
	c.nextID++
	c.nextSeq++
	r := record.Record{ID: c.nextID, Seq: c.nextSeq, Fields: doc}
	_ = c.store.Set(r.ID, r)
	c.order = append(c.order, r.ID)
	c.indexUniqueLocked(r)
	c.snap = nil
	return r
}

// replaceLocked commits a new document for an existing ID and returns the
// new record. Caller must hold c.mu.
func (c *Collection) replaceLocked(id uint64, doc record.Document) record.Record {
	old, _ := c.store.Get(id)
	c.unindexUniqueLocked(old)

	c.nextSeq++
	r := record.Record{ID: id, Seq: c.nextSeq, Fields: doc}
	_ = c.store.Set(id, r)
	c.indexUniqueLocked(r)
	c.snap = nil
	return r
}

// removeBatchLocked commits the deletion of the given records in one pass.
// Their IDs are never reused. Caller must hold c.mu.
func (c *Collection) removeBatchLocked(recs []record.Record) {
	ids := make([]uint64, 0, len(recs))
	gone := make(map[uint64]bool, len(recs))
	for _, r := range recs {
		c.unindexUniqueLocked(r)
		ids = append(ids, r.ID)
		gone[r.ID] = true
	}
	_ = c.store.BatchDelete(ids)

	kept := c.order[:0]
	for _, id := range c.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	c.order = kept
	c.snap = nil
}

// bumpVersionLocked advances the version stamp. Called exactly once per
// committed mutation call, after all record changes of that call are
// applied. Caller must hold c.mu.
func (c *Collection) bumpVersionLocked() uint64 {
	c.version++
	return c.version
}

// loadLocked bulk-inserts pre-existing records (startup restore). Records
// keep their IDs; the ID floor advances past the highest seen so fresh IDs
// are never reused. The whole batch is validated before anything is stored.
// Caller must hold c.mu and bump the version afterwards.
func (c *Collection) loadLocked(records []record.Record) error {
	items := make(map[uint64]record.Record, len(records))
	taken := make(map[string]map[string]uint64, len(c.schema.UniqueKeys))
	for _, f := range c.schema.UniqueKeys {
		taken[f] = make(map[string]uint64, len(records))
	}

	for _, r := range records {
		if r.ID == 0 {
			return fmt.Errorf("%s: record ID 0 in load", c.entity)
		}
		if _, exists := c.store.Get(r.ID); exists {
			return fmt.Errorf("%s: duplicate record ID %d in load", c.entity, r.ID)
		}
		if _, exists := items[r.ID]; exists {
			return fmt.Errorf("%s: duplicate record ID %d in load", c.entity, r.ID)
		}
		if err := c.schema.Validate(r.Fields); err != nil {
			return fmt.Errorf("%s: record %d: %w", c.entity, r.ID, err)
		}
		for _, f := range c.schema.UniqueKeys {
			v, ok := r.Fields[f]
			if !ok || v.IsNull() {
				continue
			}
			if owner, dup := c.unique[f][v.Key()]; dup {
				return fmt.Errorf("%s: records %d and %d share unique field %q", c.entity, owner, r.ID, f)
			}
			if owner, dup := taken[f][v.Key()]; dup {
				return fmt.Errorf("%s: records %d and %d share unique field %q", c.entity, owner, r.ID, f)
			}
			taken[f][v.Key()] = r.ID
		}
		items[r.ID] = r
	}

	_ = c.store.BatchSet(items)
	for _, r := range records {
		c.order = append(c.order, r.ID)
		c.indexUniqueLocked(r)
		if r.ID > c.nextID {
			c.nextID = r.ID
		}
		if r.Seq > c.nextSeq {
			c.nextSeq = r.Seq
		}
	}

	c.snap = nil
	return nil
}

// indexUniqueLocked adds a record's unique field values to the index.
// Caller must hold c.mu.
func (c *Collection) indexUniqueLocked(r record.Record) {
	for _, f := range c.schema.UniqueKeys {
		if v, ok := r.Fields[f]; ok && !v.IsNull() {
			c.unique[f][v.Key()] = r.ID
		}
	}
}

// unindexUniqueLocked removes a record's unique field values from the index.
// Caller must hold c.mu.
func (c *Collection) unindexUniqueLocked(r record.Record) {
	for _, f := range c.schema.UniqueKeys {
		if v, ok := r.Fields[f]; ok && !v.IsNull() {
			delete(c.unique[f], v.Key())
		}
	}
}
