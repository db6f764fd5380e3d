package record

// Document is a typed field document: one row's named values.
type Document map[string]Value

// Clone creates a copy of the document.
//
// This is the safe default to prevent external mutation after commit.
// Values are scalars and copy by value semantics.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// CloneIfNeeded clones a document only if it's non-nil and non-empty.
//
// This helper avoids allocation for empty documents.
func CloneIfNeeded(d Document) Document {
	if len(d) == 0 {
		return nil
	}
	return d.Clone()
}

// Record is one committed row of a collection.
//
// ID is assigned by the engine, is immutable, and is never reused after
// deletion. Seq increases on every committed update of this record and can
// be used by presentation layers for change detection.
//
// Fields must be treated as read-only: the engine replaces the whole
// document on update and never mutates a committed record in place, which is
// what keeps query snapshots consistent without copying.
type Record struct {
	ID     uint64   `json:"id"`
	Seq    uint64   `json:"seq"`
	Fields Document `json:"fields"`
}

// Field returns the named field value and whether it is present.
func (r Record) Field(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}
