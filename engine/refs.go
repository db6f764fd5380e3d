package engine

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Edge identifies one foreign-key relationship: records of Entity point at
// another collection through Field.
type Edge struct {
	Entity string
	Field  string
}

// Referrer lists the live records of one edge that reference a target.
type Referrer struct {
	Edge Edge
	IDs  []uint64 // ascending
}

// ReferenceIndex tracks incoming references across collections using Roaring
// Bitmap posting lists.
//
// Structure: target entity -> edge -> target ID -> bitmap of referencing
// record IDs. Blocked-delete checks and cascade collection are bitmap
// lookups instead of collection scans.
type ReferenceIndex struct {
	mu       sync.RWMutex
	incoming map[string]map[Edge]map[uint64]*roaring64.Bitmap
}

// NewReferenceIndex creates an empty reference index.
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{
		incoming: make(map[string]map[Edge]map[uint64]*roaring64.Bitmap),
	}
}

// Add records that refID (a record of edge.Entity) references targetID in
// targetEntity through edge.Field.
func (ri *ReferenceIndex) Add(edge Edge, targetEntity string, targetID, refID uint64) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	edges, ok := ri.incoming[targetEntity]
	if !ok {
		edges = make(map[Edge]map[uint64]*roaring64.Bitmap)
		ri.incoming[targetEntity] = edges
	}
	targets, ok := edges[edge]
	if !ok {
		targets = make(map[uint64]*roaring64.Bitmap)
		edges[edge] = targets
	}
	bm, ok := targets[targetID]
	if !ok {
		bm = roaring64.New()
		targets[targetID] = bm
	}
	bm.Add(refID)
}

// Remove drops a previously recorded reference. Empty posting lists are
// pruned so IsReferenced stays accurate.
func (ri *ReferenceIndex) Remove(edge Edge, targetEntity string, targetID, refID uint64) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	edges, ok := ri.incoming[targetEntity]
	if !ok {
		return
	}
	targets, ok := edges[edge]
	if !ok {
		return
	}
	bm, ok := targets[targetID]
	if !ok {
		return
	}
	bm.Remove(refID)
	if bm.IsEmpty() {
		delete(targets, targetID)
	}
}

// IsReferenced reports whether any live record references the target.
func (ri *ReferenceIndex) IsReferenced(targetEntity string, targetID uint64) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	for _, targets := range ri.incoming[targetEntity] {
		if bm, ok := targets[targetID]; ok && !bm.IsEmpty() {
			return true
		}
	}
	return false
}

// Referrers returns every live reference to the target, grouped by edge.
// The result is deterministic: edges sort by entity then field, IDs ascend.
func (ri *ReferenceIndex) Referrers(targetEntity string, targetID uint64) []Referrer {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	var out []Referrer
	for edge, targets := range ri.incoming[targetEntity] {
		bm, ok := targets[targetID]
		if !ok || bm.IsEmpty() {
			continue
		}
		out = append(out, Referrer{Edge: edge, IDs: bm.ToArray()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Edge.Entity != out[j].Edge.Entity {
			return out[i].Edge.Entity < out[j].Edge.Entity
		}
		return out[i].Edge.Field < out[j].Edge.Field
	})
	return out
}
