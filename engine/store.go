package engine

// Store is a generic interface for storing and retrieving data by record ID.
//
// Implementations can provide different storage strategies; the engine ships
// an in-memory map store, which is the source of truth for all reads.
type Store[T any] interface {
	// Get retrieves the data associated with the given ID.
	// Returns the data and true if found, or zero value and false if not found.
	Get(id uint64) (T, bool)

	// Set stores data associated with the given ID.
	// If the ID already exists, it updates the data.
	Set(id uint64, data T) error

	// Delete removes the data associated with the given ID.
	// Returns an error if the ID doesn't exist.
	Delete(id uint64) error

	// BatchGet retrieves data for multiple IDs in a single operation.
	// Returns a map of id -> data for all found IDs.
	BatchGet(ids []uint64) (map[uint64]T, error)

	// BatchSet stores multiple id -> data pairs in a single operation.
	BatchSet(items map[uint64]T) error

	// BatchDelete removes data for multiple IDs in a single operation.
	BatchDelete(ids []uint64) error

	// Len returns the number of items currently stored.
	Len() int
}
