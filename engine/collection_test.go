package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tabgo/record"
)

func newTestCollection() *Collection {
	return NewCollection(&record.Schema{
		Entity: "customers",
		Fields: map[string]record.FieldDef{
			"name":  {Type: record.FieldTypeString, Required: true},
			"email": {Type: record.FieldTypeString},
		},
		UniqueKeys: []string{"email"},
	})
}

func (c *Collection) insertForTest(doc record.Document) record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.insertLocked(doc)
	c.bumpVersionLocked()
	return r
}

func TestCollectionInsertAndGet(t *testing.T) {
	c := newTestCollection()

	r := c.insertForTest(record.Document{"name": record.String("Ada")})
	assert.Equal(t, uint64(1), r.ID)
	assert.Equal(t, uint64(1), r.Seq)
	assert.Equal(t, uint64(1), c.Version())

	got, ok := c.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, r, got)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestCollectionSnapshotInsertionOrder(t *testing.T) {
	c := newTestCollection()
	a := c.insertForTest(record.Document{"name": record.String("Ada")})
	b := c.insertForTest(record.Document{"name": record.String("Grace")})

	snap := c.Snapshot()
	assert.Equal(t, "customers", snap.Entity)
	assert.Equal(t, uint64(2), snap.Version)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, a.ID, snap.Records[0].ID)
	assert.Equal(t, b.ID, snap.Records[1].ID)
}

func TestCollectionSnapshotCachedBetweenMutations(t *testing.T) {
	c := newTestCollection()
	c.insertForTest(record.Document{"name": record.String("Ada")})

	s1 := c.Snapshot()
	s2 := c.Snapshot()
	assert.Equal(t, s1.Version, s2.Version)
	// Same backing slice while unchanged.
	assert.Same(t, &s1.Records[0], &s2.Records[0])

	c.insertForTest(record.Document{"name": record.String("Grace")})
	s3 := c.Snapshot()
	assert.Equal(t, s1.Version+1, s3.Version)
	assert.Len(t, s3.Records, 2)

	// The old snapshot still describes the old state.
	assert.Len(t, s1.Records, 1)
}

func TestCollectionRemoveKeepsOrder(t *testing.T) {
	c := newTestCollection()
	a := c.insertForTest(record.Document{"name": record.String("A")})
	b := c.insertForTest(record.Document{"name": record.String("B")})
	d := c.insertForTest(record.Document{"name": record.String("D")})

	c.mu.Lock()
	c.removeBatchLocked([]record.Record{b})
	c.bumpVersionLocked()
	c.mu.Unlock()

	snap := c.Snapshot()
	require.Len(t, snap.Records, 2)
	assert.Equal(t, a.ID, snap.Records[0].ID)
	assert.Equal(t, d.ID, snap.Records[1].ID)
	assert.Equal(t, 2, c.Len())
}

func TestCollectionIDsNeverReused(t *testing.T) {
	c := newTestCollection()
	a := c.insertForTest(record.Document{"name": record.String("A")})

	c.mu.Lock()
	c.removeBatchLocked([]record.Record{a})
	c.bumpVersionLocked()
	c.mu.Unlock()

	b := c.insertForTest(record.Document{"name": record.String("B")})
	assert.Greater(t, b.ID, a.ID)
}

func TestCollectionLoadAllOrNothing(t *testing.T) {
	c := newTestCollection()

	recs := []record.Record{
		{ID: 1, Seq: 1, Fields: record.Document{
			"name":  record.String("Ada"),
			"email": record.String("ada@example.com"),
		}},
		{ID: 1, Seq: 2, Fields: record.Document{"name": record.String("Grace")}},
	}

	c.mu.Lock()
	err := c.loadLocked(recs)
	c.mu.Unlock()
	require.Error(t, err)

	// The rejected batch leaves no trace, not even its valid records.
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Snapshot().Records)

	c.mu.Lock()
	_, taken := c.uniqueOwnerLocked("email", record.String("ada@example.com"))
	c.mu.Unlock()
	assert.False(t, taken)
}

func TestCollectionUniqueIndex(t *testing.T) {
	c := newTestCollection()
	r := c.insertForTest(record.Document{
		"name":  record.String("Ada"),
		"email": record.String("ada@example.com"),
	})

	c.mu.Lock()
	owner, taken := c.uniqueOwnerLocked("email", record.String("ada@example.com"))
	c.mu.Unlock()
	assert.True(t, taken)
	assert.Equal(t, r.ID, owner)

	// Replacing the document reindexes the unique value.
	c.mu.Lock()
	c.replaceLocked(r.ID, record.Document{
		"name":  record.String("Ada"),
		"email": record.String("new@example.com"),
	})
	c.bumpVersionLocked()
	_, taken = c.uniqueOwnerLocked("email", record.String("ada@example.com"))
	c.mu.Unlock()
	assert.False(t, taken)

	// Null values are not indexed.
	c.mu.Lock()
	c.insertLocked(record.Document{"name": record.String("X"), "email": record.Null()})
	c.bumpVersionLocked()
	_, taken = c.uniqueOwnerLocked("email", record.Null())
	c.mu.Unlock()
	assert.False(t, taken)
}
