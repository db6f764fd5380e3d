// Package engine provides the mutation and storage layer of tabgo.
//
// All mutations route through a Coordinator to provide atomic commit
// semantics per call:
//   - validate fields against the entity schema
//   - check uniqueness keys and foreign references
//   - apply the mutation to the collection and its indexes
//   - bump the collection version exactly once (commit boundary)
//   - invoke the commit hook (cache invalidation, write-behind durability)
//
// A rejected call leaves every collection untouched. Queries never observe a
// half-applied mutation: committed records are immutable values, so a
// snapshot captured at version V stays consistent while later commits build
// new state beside it.
package engine
