// Package diff computes the storage mutations that turn one collection value
// into another.
package diff

import (
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// Collection returns the mutations that change column from past to current.
// With element granularity, sets yield element removals and additions and
// maps yield key deletions and entry puts; lists and replace granularity
// rewrite the whole value. Equal values yield no mutations.
func Collection(column string, elementwise bool, past, current value.Value) []storage.Mutation {
	if value.Equal(past, current) {
		return nil
	}
	if !elementwise {
		return []storage.Mutation{storage.SetColumn{Column: column, Value: value.Clone(current)}}
	}

	switch cur := current.(type) {
	case value.Set:
		prev, _ := past.(value.Set)
		return setDelta(column, prev, cur)
	case value.Map:
		prev, _ := past.(value.Map)
		return mapDelta(column, prev, cur)
	default:
		return []storage.Mutation{storage.SetColumn{Column: column, Value: value.Clone(current)}}
	}
}

func setDelta(column string, past, current value.Set) []storage.Mutation {
	var removed, added []value.Value
	for _, item := range past.Items {
		if !current.Contains(item) {
			removed = append(removed, item)
		}
	}
	for _, item := range current.Items {
		if !past.Contains(item) {
			added = append(added, value.Clone(item))
		}
	}

	var out []storage.Mutation
	if len(removed) > 0 {
		out = append(out, storage.RemoveElements{Column: column, Elements: removed})
	}
	if len(added) > 0 {
		out = append(out, storage.AddElements{Column: column, Elements: added})
	}
	return out
}

func mapDelta(column string, past, current value.Map) []storage.Mutation {
	var deleted []value.Value
	for _, e := range past.Entries {
		if _, ok := current.Get(e.Key); !ok {
			deleted = append(deleted, e.Key)
		}
	}
	var put []value.Entry
	for _, e := range current.Entries {
		if prev, ok := past.Get(e.Key); ok && value.Equal(prev, e.Value) {
			continue
		}
		put = append(put, value.Entry{Key: value.Clone(e.Key), Value: value.Clone(e.Value)})
	}

	var out []storage.Mutation
	if len(deleted) > 0 {
		out = append(out, storage.DeleteKeys{Column: column, Keys: deleted})
	}
	if len(put) > 0 {
		out = append(out, storage.PutEntries{Column: column, Entries: put})
	}
	return out
}
