package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/tabgo/record"
)

// Op identifies the kind of a committed mutation.
type Op string

const (
	// OpCreate is a record creation.
	OpCreate Op = "create"
	// OpUpdate is a record update.
	OpUpdate Op = "update"
	// OpDelete is a record deletion.
	OpDelete Op = "delete"
)

// Commit describes one committed mutation of one collection. A single
// coordinator call emits one Commit per affected collection (cascading
// deletes may touch several).
type Commit struct {
	Entity  string
	Op      Op
	Version uint64 // collection version after the commit
	Records []record.Record
}

// CommitHook is invoked synchronously after each commit, outside collection
// locks but still inside the mutation critical section. Hooks must not call
// back into the coordinator. Typical hooks: cache invalidation sweeps,
// write-behind durability appenders.
type CommitHook func(ctx context.Context, commit Commit)

// Coordinator is the single mutation path of the engine.
//
// It wraps collection operations with commit-time checks and guarantees
// exactly one of {fully committed, fully rejected} per call. Mutations are
// serialized by one mutex: referential checks span collections, and a single
// writer keeps check-then-commit free of interleavings. Queries do not take
// this lock.
type Coordinator struct {
	mu          sync.Mutex
	collections map[string]*Collection
	refs        *ReferenceIndex
	hooks       []CommitHook
}

// NewCoordinator creates a coordinator for the given entity schemas.
//
// Every reference must point at a configured entity and be declared as an
// int field; unique keys must be declared fields. These are configuration
// errors, reported at construction rather than first use.
func NewCoordinator(schemas ...*record.Schema) (*Coordinator, error) {
	co := &Coordinator{
		collections: make(map[string]*Collection, len(schemas)),
		refs:        NewReferenceIndex(),
	}

	for _, s := range schemas {
		if s.Entity == "" {
			return nil, fmt.Errorf("coordinator: schema with empty entity name")
		}
		if _, dup := co.collections[s.Entity]; dup {
			return nil, fmt.Errorf("coordinator: duplicate entity %q", s.Entity)
		}
		co.collections[s.Entity] = NewCollection(s)
	}

	for _, s := range schemas {
		for _, f := range s.UniqueKeys {
			if !s.HasField(f) {
				return nil, fmt.Errorf("coordinator: %s: unique key %q is not a declared field", s.Entity, f)
			}
		}
		for f, target := range s.References {
			def, ok := s.Fields[f]
			if !ok {
				return nil, fmt.Errorf("coordinator: %s: reference field %q is not a declared field", s.Entity, f)
			}
			if def.Type != record.FieldTypeInt {
				return nil, fmt.Errorf("coordinator: %s: reference field %q must be an int field", s.Entity, f)
			}
			if _, ok := co.collections[target]; !ok {
				return nil, fmt.Errorf("coordinator: %s: reference field %q targets unknown entity %q", s.Entity, f, target)
			}
		}
	}

	return co, nil
}

// AddCommitHook registers a hook. Not safe for concurrent use with
// mutations; register hooks during setup.
func (co *Coordinator) AddCommitHook(h CommitHook) {
	if h != nil {
		co.hooks = append(co.hooks, h)
	}
}

// Collection returns the collection for an entity.
func (co *Coordinator) Collection(entity string) (*Collection, error) {
	c, ok := co.collections[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return c, nil
}

// Entities returns the configured entity names, sorted.
func (co *Coordinator) Entities() []string {
	out := make([]string, 0, len(co.collections))
	for e := range co.collections {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Get retrieves a record.
func (co *Coordinator) Get(entity string, id uint64) (record.Record, error) {
	coll, err := co.Collection(entity)
	if err != nil {
		return record.Record{}, err
	}
	r, ok := coll.Get(id)
	if !ok {
		return record.Record{}, fmt.Errorf("%s: record %d: %w", entity, id, ErrNotFound)
	}
	return r, nil
}

// Create validates and commits a new record, returning it with its assigned
// ID. The input document is cloned; later caller mutations have no effect.
func (co *Coordinator) Create(ctx context.Context, entity string, fields record.Document) (record.Record, error) {
	coll, err := co.Collection(entity)
	if err != nil {
		return record.Record{}, err
	}

	doc := record.CloneIfNeeded(fields)
	if doc == nil {
		doc = record.Document{}
	}
	if err := coll.schema.Validate(doc); err != nil {
		return record.Record{}, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	outgoing, err := co.resolveReferences(coll.schema, doc)
	if err != nil {
		return record.Record{}, err
	}

	coll.mu.Lock()
	if err := co.checkUniqueLocked(coll, doc, 0); err != nil {
		coll.mu.Unlock()
		return record.Record{}, err
	}
	r := coll.insertLocked(doc)
	version := coll.bumpVersionLocked()
	coll.mu.Unlock()

	for _, ref := range outgoing {
		co.refs.Add(ref.edge, ref.targetEntity, ref.targetID, r.ID)
	}

	co.emit(ctx, Commit{Entity: entity, Op: OpCreate, Version: version, Records: []record.Record{r}})
	return r, nil
}

// Update merges partial fields into an existing record, re-validates, and
// commits. The record's Seq advances; unchanged fields are preserved.
func (co *Coordinator) Update(ctx context.Context, entity string, id uint64, partial record.Document) (record.Record, error) {
	coll, err := co.Collection(entity)
	if err != nil {
		return record.Record{}, err
	}
	if err := coll.schema.ValidatePartial(partial); err != nil {
		return record.Record{}, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	old, ok := coll.Get(id)
	if !ok {
		return record.Record{}, fmt.Errorf("%s: record %d: %w", entity, id, ErrNotFound)
	}

	merged := old.Fields.Clone()
	if merged == nil {
		merged = record.Document{}
	}
	for k, v := range partial {
		merged[k] = v
	}
	if err := coll.schema.Validate(merged); err != nil {
		return record.Record{}, err
	}

	newRefs, err := co.resolveReferences(coll.schema, merged)
	if err != nil {
		return record.Record{}, err
	}
	// Old references are listed loosely: their targets need not still
	// resolve for the index entries to come out.
	oldRefs, _ := co.resolveReferencesLoose(coll.schema, old.Fields)

	coll.mu.Lock()
	if err := co.checkUniqueLocked(coll, merged, id); err != nil {
		coll.mu.Unlock()
		return record.Record{}, err
	}
	r := coll.replaceLocked(id, merged)
	version := coll.bumpVersionLocked()
	coll.mu.Unlock()

	for _, ref := range oldRefs {
		co.refs.Remove(ref.edge, ref.targetEntity, ref.targetID, id)
	}
	for _, ref := range newRefs {
		co.refs.Add(ref.edge, ref.targetEntity, ref.targetID, id)
	}

	co.emit(ctx, Commit{Entity: entity, Op: OpUpdate, Version: version, Records: []record.Record{r}})
	return r, nil
}

// Delete removes a record. While live references to it exist the call is
// rejected with a ReferenceError, unless cascade is set (or the entity's
// schema opts out of restriction), in which case referencing records are
// removed in the same call.
func (co *Coordinator) Delete(ctx context.Context, entity string, id uint64, cascade bool) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	plan, err := co.planDelete(entity, []uint64{id}, cascade)
	if err != nil {
		return err
	}
	co.applyDeletePlan(ctx, plan)
	return nil
}

// BulkDelete removes a set of records all-or-nothing: every ID is validated
// before any deletion is applied, and one unknown ID aborts the whole batch.
// The collection version advances once per affected collection.
func (co *Coordinator) BulkDelete(ctx context.Context, entity string, ids []uint64, cascade bool) error {
	if len(ids) == 0 {
		return nil
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	plan, err := co.planDelete(entity, ids, cascade)
	if err != nil {
		return err
	}
	co.applyDeletePlan(ctx, plan)
	return nil
}

// Load bulk-inserts pre-existing records into an entity (startup restore
// from the persistence collaborator). Load parents before children: foreign
// references must resolve against already-loaded collections. No commit
// hooks fire; the collection version advances once.
func (co *Coordinator) Load(entity string, records []record.Record) error {
	coll, err := co.Collection(entity)
	if err != nil {
		return err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	type pendingRef struct {
		ref   outgoingRef
		refID uint64
	}
	var pending []pendingRef
	for _, r := range records {
		outgoing, err := co.resolveReferences(coll.schema, r.Fields)
		if err != nil {
			return err
		}
		for _, ref := range outgoing {
			pending = append(pending, pendingRef{ref: ref, refID: r.ID})
		}
	}

	coll.mu.Lock()
	if err := coll.loadLocked(records); err != nil {
		coll.mu.Unlock()
		return err
	}
	coll.bumpVersionLocked()
	coll.mu.Unlock()

	for _, p := range pending {
		co.refs.Add(p.ref.edge, p.ref.targetEntity, p.ref.targetID, p.refID)
	}
	return nil
}

type outgoingRef struct {
	edge         Edge
	targetEntity string
	targetID     uint64
}

// resolveReferences checks every present, non-null reference field of the
// document against its target collection. Caller must hold co.mu.
func (co *Coordinator) resolveReferences(schema *record.Schema, doc record.Document) ([]outgoingRef, error) {
	if len(schema.References) == 0 {
		return nil, nil
	}

	var out []outgoingRef
	for field, targetEntity := range schema.References {
		v, ok := doc[field]
		if !ok || v.IsNull() {
			continue
		}
		id, _ := v.AsInt64()
		target := co.collections[targetEntity]
		if _, ok := target.Get(uint64(id)); !ok {
			return nil, &ReferenceError{
				Entity:       schema.Entity,
				Field:        field,
				TargetEntity: targetEntity,
				TargetID:     uint64(id),
			}
		}
		out = append(out, outgoingRef{
			edge:         Edge{Entity: schema.Entity, Field: field},
			targetEntity: targetEntity,
			targetID:     uint64(id),
		})
	}
	return out, nil
}

// checkUniqueLocked rejects the document if any unique field value is owned
// by another record. selfID exempts the record being updated. Caller must
// hold coll.mu.
func (co *Coordinator) checkUniqueLocked(coll *Collection, doc record.Document, selfID uint64) error {
	for _, f := range coll.schema.UniqueKeys {
		v, ok := doc[f]
		if !ok || v.IsNull() {
			continue
		}
		if owner, taken := coll.uniqueOwnerLocked(f, v); taken && owner != selfID {
			return &DuplicateError{Entity: coll.entity, Field: f, Value: v}
		}
	}
	return nil
}

// deletePlan maps entity -> records to remove, in a deterministic order.
type deletePlan struct {
	entities []string
	records  map[string][]record.Record
}

// planDelete validates a delete request and computes its full closure.
// Nothing is modified; any error aborts the call before the first removal.
// Caller must hold co.mu.
func (co *Coordinator) planDelete(entity string, ids []uint64, cascade bool) (*deletePlan, error) {
	coll, err := co.Collection(entity)
	if err != nil {
		return nil, err
	}

	plan := &deletePlan{records: make(map[string][]record.Record)}
	seen := make(map[string]map[uint64]bool)

	mark := func(e string, r record.Record) {
		if seen[e] == nil {
			seen[e] = make(map[uint64]bool)
			plan.entities = append(plan.entities, e)
		}
		seen[e][r.ID] = true
		plan.records[e] = append(plan.records[e], r)
	}

	type item struct {
		entity string
		id     uint64
	}
	var stack []item

	// Roots must exist; a single unknown ID rejects the whole call.
	for _, id := range ids {
		if seen[entity][id] {
			continue
		}
		r, ok := coll.Get(id)
		if !ok {
			return nil, fmt.Errorf("%s: record %d: %w", entity, id, ErrNotFound)
		}
		mark(entity, r)
		stack = append(stack, item{entity, id})
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		curColl := co.collections[cur.entity]
		for _, referrer := range co.refs.Referrers(cur.entity, cur.id) {
			for _, refID := range referrer.IDs {
				if seen[referrer.Edge.Entity][refID] {
					continue
				}
				if curColl.schema.RestrictDelete && !cascade {
					return nil, &ReferenceError{
						Entity:       referrer.Edge.Entity,
						Field:        referrer.Edge.Field,
						TargetEntity: cur.entity,
						TargetID:     cur.id,
						Blocked:      true,
					}
				}
				refColl := co.collections[referrer.Edge.Entity]
				r, ok := refColl.Get(refID)
				if !ok {
					continue
				}
				mark(referrer.Edge.Entity, r)
				stack = append(stack, item{referrer.Edge.Entity, refID})
			}
		}
	}

	sort.Strings(plan.entities)
	return plan, nil
}

// applyDeletePlan removes every planned record, maintains the reference
// index, bumps each affected collection's version once, and emits one
// delete commit per collection. Caller must hold co.mu.
func (co *Coordinator) applyDeletePlan(ctx context.Context, plan *deletePlan) {
	commits := make([]Commit, 0, len(plan.entities))

	for _, e := range plan.entities {
		coll := co.collections[e]
		recs := plan.records[e]

		coll.mu.Lock()
		coll.removeBatchLocked(recs)
		version := coll.bumpVersionLocked()
		coll.mu.Unlock()

		for _, r := range recs {
			outgoing, _ := co.resolveReferencesLoose(coll.schema, r.Fields)
			for _, ref := range outgoing {
				co.refs.Remove(ref.edge, ref.targetEntity, ref.targetID, r.ID)
			}
		}

		commits = append(commits, Commit{Entity: e, Op: OpDelete, Version: version, Records: recs})
	}

	for _, c := range commits {
		co.emit(ctx, c)
	}
}

// resolveReferencesLoose lists a document's outgoing references without
// checking that targets still exist; used when tearing down index entries
// for records being deleted (their targets may be going away in the same
// plan).
func (co *Coordinator) resolveReferencesLoose(schema *record.Schema, doc record.Document) ([]outgoingRef, error) {
	var out []outgoingRef
	for field, targetEntity := range schema.References {
		v, ok := doc[field]
		if !ok || v.IsNull() {
			continue
		}
		id, _ := v.AsInt64()
		out = append(out, outgoingRef{
			edge:         Edge{Entity: schema.Entity, Field: field},
			targetEntity: targetEntity,
			targetID:     uint64(id),
		})
	}
	return out, nil
}

func (co *Coordinator) emit(ctx context.Context, c Commit) {
	for _, h := range co.hooks {
		h(ctx, c)
	}
}
