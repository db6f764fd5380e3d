// Package record defines the typed data model of tabgo: field values, record
// documents, entity schemas, and filter predicates.
//
// Values are kind-tagged scalars designed for fast, reflection-free
// comparison during filtering and sorting. Strings are interned so that
// repeated categorical values (status columns, customer types) share storage.
//
// A Schema describes one entity type: its field definitions (type,
// required-ness, searchability), uniqueness keys, and foreign references.
// Schemas are supplied by the caller at engine construction and are the only
// source of column knowledge inside the engine.
package record
