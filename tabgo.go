// Package tabgo is an embedded, in-memory tabular data engine for
// dashboard-style workloads: schema-validated records, deterministic
// search/filter/sort/pagination queries, a version-stamped result cache,
// and serialized mutations with uniqueness and referential-integrity
// enforcement.
//
// All reads are served from memory. Durability is optional and layered on
// behind the commit path: a replayable journal for crash recovery and
// full-state snapshots written through a pluggable blob store.
package tabgo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hupe1980/tabgo/cache"
	"github.com/hupe1980/tabgo/engine"
	"github.com/hupe1980/tabgo/journal"
	"github.com/hupe1980/tabgo/query"
	"github.com/hupe1980/tabgo/record"
	"github.com/hupe1980/tabgo/snapshot"
)

// DB is the top-level handle. Safe for concurrent use: queries run in
// parallel against immutable snapshots while mutations are serialized by the
// coordinator.
type DB struct {
	co      *engine.Coordinator
	cache   *cache.ResultCache
	jrnl    *journal.Journal
	snaps   *snapshot.Manager
	schemas []*record.Schema
	opts    options
	closed  atomic.Bool
}

// Open creates a DB for the given entity schemas and restores prior state
// from the configured snapshot store and journal, if any.
func Open(schemas []*record.Schema, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	co, err := engine.NewCoordinator(schemas...)
	if err != nil {
		return nil, err
	}

	db := &DB{
		co:      co,
		cache:   cache.New(opts.cacheCapacity),
		schemas: schemas,
		opts:    opts,
	}

	if opts.snapshotStore != nil {
		snapFns := opts.snapshotOptions
		snapFns = append(snapFns, func(o *snapshot.Options) {
			if o.Codec == nil {
				o.Codec = opts.codec
			}
			if o.Controller == nil {
				o.Controller = opts.controller
			}
		})
		db.snaps = snapshot.NewManager(opts.snapshotStore, snapFns...)
	}

	if opts.journalPath != "" {
		jrnlFns := opts.journalOptions
		jrnlFns = append(jrnlFns, func(o *journal.Options) {
			if o.Codec == nil && opts.codec != nil {
				o.Codec = opts.codec
			}
			if o.Controller == nil {
				o.Controller = opts.controller
			}
		})
		db.jrnl, err = journal.Open(opts.journalPath, jrnlFns...)
		if err != nil {
			return nil, err
		}
	}

	if err := db.restore(context.Background()); err != nil {
		if db.jrnl != nil {
			_ = db.jrnl.Close()
		}
		return nil, err
	}

	co.AddCommitHook(db.onCommit)
	for _, h := range opts.commitHooks {
		co.AddCommitHook(h)
	}

	return db, nil
}

// onCommit is the engine's post-commit hook: sweep stale cache entries and
// append the commit to the journal.
func (db *DB) onCommit(ctx context.Context, c engine.Commit) {
	db.cache.Invalidate(c.Entity, c.Version)

	if db.jrnl != nil {
		err := db.jrnl.Append(ctx, journal.Entry{
			Entity:  c.Entity,
			Op:      string(c.Op),
			Version: c.Version,
			Records: c.Records,
		})
		if err != nil {
			// In-memory state is the read source of truth; a failed append
			// costs replay coverage, not correctness.
			db.opts.logger.ErrorContext(ctx, "journal append failed",
				"entity", c.Entity,
				"op", string(c.Op),
				"error", err,
			)
		}
	}
}

// Entities returns the configured entity names, sorted.
func (db *DB) Entities() []string {
	return db.co.Entities()
}

// Schema returns the schema of an entity.
func (db *DB) Schema(entity string) (*record.Schema, error) {
	coll, err := db.co.Collection(entity)
	if err != nil {
		return nil, translateError(err)
	}
	return coll.Schema(), nil
}

// Version returns the current version stamp of an entity's collection.
func (db *DB) Version(entity string) (uint64, error) {
	coll, err := db.co.Collection(entity)
	if err != nil {
		return 0, translateError(err)
	}
	return coll.Version(), nil
}

// Len returns the number of live records of an entity.
func (db *DB) Len(entity string) (int, error) {
	coll, err := db.co.Collection(entity)
	if err != nil {
		return 0, translateError(err)
	}
	return coll.Len(), nil
}

// Get retrieves a single record by ID.
func (db *DB) Get(entity string, id uint64) (record.Record, error) {
	if db.closed.Load() {
		return record.Record{}, ErrClosed
	}
	r, err := db.co.Get(entity, id)
	return r, translateError(err)
}

// Create validates and commits a new record, returning it with its assigned
// ID.
func (db *DB) Create(ctx context.Context, entity string, fields record.Document) (record.Record, error) {
	if db.closed.Load() {
		return record.Record{}, ErrClosed
	}

	start := time.Now()
	r, err := db.co.Create(ctx, entity, fields)
	err = translateError(err)

	db.opts.metricsCollector.RecordMutation("create", time.Since(start), err)
	db.opts.logger.LogCreate(ctx, entity, r.ID, err)
	return r, err
}

// Update merges partial fields into an existing record, re-validates, and
// commits. Unchanged fields are preserved.
func (db *DB) Update(ctx context.Context, entity string, id uint64, partial record.Document) (record.Record, error) {
	if db.closed.Load() {
		return record.Record{}, ErrClosed
	}

	start := time.Now()
	r, err := db.co.Update(ctx, entity, id, partial)
	err = translateError(err)

	db.opts.metricsCollector.RecordMutation("update", time.Since(start), err)
	db.opts.logger.LogUpdate(ctx, entity, id, err)
	return r, err
}

// Delete removes one record. With cascade, records referencing it are
// removed in the same call; without, a referenced record whose schema
// restricts deletion is rejected with ErrReferential.
func (db *DB) Delete(ctx context.Context, entity string, id uint64, cascade bool) error {
	if db.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	err := translateError(db.co.Delete(ctx, entity, id, cascade))

	db.opts.metricsCollector.RecordMutation("delete", time.Since(start), err)
	db.opts.logger.LogDelete(ctx, entity, 1, err)
	return err
}

// BulkDelete removes a set of records all-or-nothing: one unknown ID rejects
// the whole batch before anything is removed.
func (db *DB) BulkDelete(ctx context.Context, entity string, ids []uint64, cascade bool) error {
	if db.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	err := translateError(db.co.BulkDelete(ctx, entity, ids, cascade))

	db.opts.metricsCollector.RecordMutation("delete", time.Since(start), err)
	db.opts.logger.LogDelete(ctx, entity, len(ids), err)
	return err
}

// Load bulk-inserts pre-existing records, e.g. an initial import. Records
// keep their IDs; load referenced entities before referencing ones.
func (db *DB) Load(ctx context.Context, entity string, records []record.Record) error {
	if db.closed.Load() {
		return ErrClosed
	}

	if err := db.co.Load(entity, records); err != nil {
		return translateError(err)
	}

	// Coordinator loads bypass commit hooks; journal the records explicitly
	// so they survive a restart.
	if db.jrnl != nil {
		coll, _ := db.co.Collection(entity)
		err := db.jrnl.Append(ctx, journal.Entry{
			Entity:  entity,
			Op:      string(engine.OpCreate),
			Version: coll.Version(),
			Records: records,
		})
		if err != nil {
			db.opts.logger.ErrorContext(ctx, "journal append failed",
				"entity", entity,
				"op", "load",
				"error", err,
			)
		}
	}
	return nil
}

// Query executes a descriptor against the entity's current snapshot,
// serving repeated identical views from the result cache.
func (db *DB) Query(ctx context.Context, entity string, d query.Descriptor) (query.Page, error) {
	if db.closed.Load() {
		return query.Page{}, ErrClosed
	}

	start := time.Now()
	coll, err := db.co.Collection(entity)
	if err != nil {
		err = translateError(err)
		db.opts.metricsCollector.RecordQuery(time.Since(start), false, err)
		db.opts.logger.LogQuery(ctx, entity, 0, 0, err)
		return query.Page{}, err
	}

	snap := coll.Snapshot()
	key := cache.Key{Entity: entity, Version: snap.Version, Descriptor: d.Key()}

	computed := false
	page, err := db.cache.GetOrCompute(key, func() (query.Page, error) {
		computed = true
		return query.Execute(snap, coll.Schema(), d)
	})
	err = translateError(err)

	db.opts.metricsCollector.RecordQuery(time.Since(start), !computed, err)
	db.opts.logger.LogQuery(ctx, entity, len(page.Rows), page.TotalMatching, err)
	return page, err
}

// SaveSnapshot persists the full current state through the configured
// snapshot store and truncates the journal. Returns the snapshot blob name.
func (db *DB) SaveSnapshot(ctx context.Context) (string, error) {
	if db.closed.Load() {
		return "", ErrClosed
	}
	if db.snaps == nil {
		return "", errors.New("tabgo: no snapshot store configured")
	}

	start := time.Now()
	snaps := make([]engine.Snapshot, 0, len(db.schemas))
	for _, entity := range db.co.Entities() {
		coll, _ := db.co.Collection(entity)
		snaps = append(snaps, coll.Snapshot())
	}

	name, err := db.snaps.Save(ctx, snaps)
	db.opts.metricsCollector.RecordSnapshot(time.Since(start), err)
	db.opts.logger.LogSnapshot(ctx, name, err)
	if err != nil {
		return "", err
	}

	if db.jrnl != nil {
		if err := db.jrnl.Truncate(); err != nil {
			return name, err
		}
	}
	return name, nil
}

// CacheStats returns cumulative result-cache hit and miss counters.
func (db *DB) CacheStats() (hits, misses int64) {
	return db.cache.Stats()
}

// Close releases the DB. Queries and mutations after Close return ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	if db.jrnl != nil {
		return db.jrnl.Close()
	}
	return nil
}

// entityState accumulates the final restored records of one entity.
// maxID/maxSeq cover deleted records too, so their IDs are never reissued.
type entityState struct {
	order  []uint64
	recs   map[uint64]record.Record
	maxID  uint64
	maxSeq uint64
}

func newEntityState() *entityState {
	return &entityState{recs: make(map[uint64]record.Record)}
}

func (s *entityState) upsert(r record.Record) {
	if _, ok := s.recs[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.recs[r.ID] = r
	if r.ID > s.maxID {
		s.maxID = r.ID
	}
	if r.Seq > s.maxSeq {
		s.maxSeq = r.Seq
	}
}

func (s *entityState) remove(id uint64) {
	if _, ok := s.recs[id]; !ok {
		return
	}
	delete(s.recs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *entityState) records() []record.Record {
	out := make([]record.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.recs[id])
	}
	return out
}

// restore rebuilds in-memory state: latest snapshot first, then the journal
// replayed on top. Only the final surviving records are loaded, so replay
// cost is one pass regardless of history length.
func (db *DB) restore(ctx context.Context) error {
	states := make(map[string]*entityState)
	state := func(entity string) *entityState {
		s, ok := states[entity]
		if !ok {
			s = newEntityState()
			states[entity] = s
		}
		return s
	}

	if db.snaps != nil {
		snaps, err := db.snaps.LoadLatest(ctx)
		switch {
		case errors.Is(err, snapshot.ErrNoSnapshot):
		case err != nil:
			return err
		default:
			for _, s := range snaps {
				es := state(s.Entity)
				for _, r := range s.Records {
					es.upsert(r)
				}
			}
		}
	}

	replayed := 0
	if db.jrnl != nil {
		err := db.jrnl.Replay(ctx, func(e journal.Entry) error {
			replayed++
			es := state(e.Entity)
			switch engine.Op(e.Op) {
			case engine.OpCreate, engine.OpUpdate:
				for _, r := range e.Records {
					es.upsert(r)
				}
			case engine.OpDelete:
				for _, r := range e.Records {
					es.remove(r.ID)
				}
			default:
				return fmt.Errorf("tabgo: unknown journal op %q", e.Op)
			}
			return nil
		})
		db.opts.logger.LogRecovery(ctx, replayed, err)
		if err != nil {
			return err
		}
	}

	if len(states) == 0 {
		return nil
	}

	for _, entity := range loadOrder(db.schemas) {
		s, ok := states[entity]
		if !ok {
			continue
		}
		if len(s.order) > 0 {
			if err := db.co.Load(entity, s.records()); err != nil {
				return fmt.Errorf("tabgo: restore %s: %w", entity, err)
			}
		}
		if coll, err := db.co.Collection(entity); err == nil {
			coll.SetFloors(s.maxID, s.maxSeq)
		}
	}
	return nil
}

// loadOrder sorts entities so reference targets load before the entities
// referencing them. Ties and cycles fall back to name order; the coordinator
// rejects unresolved references either way.
func loadOrder(schemas []*record.Schema) []string {
	dependents := make(map[string][]string) // target -> entities referencing it
	indegree := make(map[string]int, len(schemas))
	for _, s := range schemas {
		indegree[s.Entity] += 0
		seen := make(map[string]bool)
		for _, target := range s.References {
			if target == s.Entity || seen[target] {
				continue
			}
			seen[target] = true
			dependents[target] = append(dependents[target], s.Entity)
			indegree[s.Entity]++
		}
	}

	var ready []string
	for e, d := range indegree {
		if d == 0 {
			ready = append(ready, e)
		}
	}
	sort.Strings(ready)

	var out []string
	for len(ready) > 0 {
		e := ready[0]
		ready = ready[1:]
		out = append(out, e)
		for _, dep := range dependents[e] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
	}

	// Cycles: append whatever remains, name-ordered.
	if len(out) < len(indegree) {
		var rest []string
		seen := make(map[string]bool, len(out))
		for _, e := range out {
			seen[e] = true
		}
		for e := range indegree {
			if !seen[e] {
				rest = append(rest, e)
			}
		}
		sort.Strings(rest)
		out = append(out, rest...)
	}
	return out
}
