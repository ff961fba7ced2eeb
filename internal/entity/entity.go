// Package entity materializes the packages and targets declared in a
// workspace's settings.
//
// Each surviving settings entry becomes a Record: a private deep copy of the
// entry, its ordinal among the surviving entries, and a non-owning reference
// to the workspace it came from. Indices are only meaningful within the
// snapshot they were computed from; a reload yields new records.
package entity

import (
	"github.com/dshills/deployd/internal/config/tree"
)

// Owner is the workspace a record belongs to.
type Owner interface {
	Root() string
	Name() string
}

// Record is one materialized settings entry.
type Record struct {
	// Payload is a private deep copy of the settings entry.
	Payload map[string]any

	// Index is the 0-based position among the entries that survived filtering.
	Index int

	// Owner is the workspace the entry was read from.
	Owner Owner
}

// Materialize turns a raw settings value (absent, a single object or a list)
// into records. Entries that are not objects are dropped and do not consume
// an index.
func Materialize(raw any, owner Owner) []Record {
	items := tree.List(raw)

	records := make([]Record, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, Record{
			Payload: tree.Clone(m),
			Index:   len(records),
			Owner:   owner,
		})
	}
	return records
}

// GetString returns a string field of the payload.
func (r Record) GetString(key string) string {
	s, _ := tree.String(r.Payload, key)
	return s
}

// GetStrings returns a string-list field of the payload.
func (r Record) GetStrings(key string) []string {
	return tree.Strings(r.Payload, key)
}

// GetBool returns a bool field of the payload.
func (r Record) GetBool(key string) bool {
	b, _ := tree.Bool(r.Payload, key)
	return b
}

// Value returns a raw payload field.
func (r Record) Value(key string) (any, bool) {
	v, ok := r.Payload[key]
	return v, ok
}

// Root returns the owning workspace root, or "" if the record is detached.
func (r Record) Root() string {
	if r.Owner == nil {
		return ""
	}
	return r.Owner.Root()
}
