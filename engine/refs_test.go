package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceIndexAddRemove(t *testing.T) {
	ri := NewReferenceIndex()
	edge := Edge{Entity: "orders", Field: "customer_id"}

	assert.False(t, ri.IsReferenced("customers", 1))

	ri.Add(edge, "customers", 1, 10)
	ri.Add(edge, "customers", 1, 11)
	assert.True(t, ri.IsReferenced("customers", 1))
	assert.False(t, ri.IsReferenced("customers", 2))

	ri.Remove(edge, "customers", 1, 10)
	assert.True(t, ri.IsReferenced("customers", 1))

	ri.Remove(edge, "customers", 1, 11)
	assert.False(t, ri.IsReferenced("customers", 1))

	// Removing something never added is a no-op.
	ri.Remove(edge, "customers", 1, 99)
	ri.Remove(Edge{Entity: "x", Field: "y"}, "customers", 1, 10)
}

func TestReferenceIndexReferrersDeterministic(t *testing.T) {
	ri := NewReferenceIndex()
	orders := Edge{Entity: "orders", Field: "customer_id"}
	invoices := Edge{Entity: "invoices", Field: "customer_id"}

	ri.Add(orders, "customers", 1, 30)
	ri.Add(orders, "customers", 1, 10)
	ri.Add(orders, "customers", 1, 20)
	ri.Add(invoices, "customers", 1, 5)

	got := ri.Referrers("customers", 1)
	require.Len(t, got, 2)

	// Edges sort by entity, IDs ascend.
	assert.Equal(t, invoices, got[0].Edge)
	assert.Equal(t, []uint64{5}, got[0].IDs)
	assert.Equal(t, orders, got[1].Edge)
	assert.Equal(t, []uint64{10, 20, 30}, got[1].IDs)

	assert.Empty(t, ri.Referrers("customers", 2))
}
