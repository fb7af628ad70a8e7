package storage

import (
	"fmt"

	"github.com/jacentio/lattice/value"
)

// Mutation is a column-level change carried by [UpdateRow]. The set is
// closed: [SetColumn], [AddElements], [RemoveElements], [PutEntries] and
// [DeleteKeys].
type Mutation interface {
	ColumnName() string
	isMutation()
}

// SetColumn replaces the whole value of a column.
type SetColumn struct {
	Column string
	Value  value.Value
}

// AddElements adds elements to a set column.
type AddElements struct {
	Column   string
	Elements []value.Value
}

// RemoveElements removes elements from a set column.
type RemoveElements struct {
	Column   string
	Elements []value.Value
}

// PutEntries inserts or overwrites entries of a map column.
type PutEntries struct {
	Column  string
	Entries []value.Entry
}

// DeleteKeys removes keys from a map column.
type DeleteKeys struct {
	Column string
	Keys   []value.Value
}

func (m SetColumn) ColumnName() string      { return m.Column }
func (m AddElements) ColumnName() string    { return m.Column }
func (m RemoveElements) ColumnName() string { return m.Column }
func (m PutEntries) ColumnName() string     { return m.Column }
func (m DeleteKeys) ColumnName() string     { return m.Column }

func (SetColumn) isMutation()      {}
func (AddElements) isMutation()    {}
func (RemoveElements) isMutation() {}
func (PutEntries) isMutation()     {}
func (DeleteKeys) isMutation()     {}

// ApplyMutations returns a copy of row with the mutations applied in order.
// Backends that store whole rows use it to implement [UpdateRow].
func ApplyMutations(row Row, mutations []Mutation) (Row, error) {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = value.Clone(v)
	}

	for _, m := range mutations {
		switch t := m.(type) {
		case SetColumn:
			if t.Value == nil {
				delete(out, t.Column)
				continue
			}
			out[t.Column] = value.Clone(t.Value)
		case AddElements:
			current, err := setColumn(out, t.Column, t.Elements)
			if err != nil {
				return nil, err
			}
			out[t.Column] = value.NewSet(current.Elem, append(current.Items, t.Elements...)...)
		case RemoveElements:
			current, err := setColumn(out, t.Column, t.Elements)
			if err != nil {
				return nil, err
			}
			removed := value.NewSet(current.Elem, t.Elements...)
			kept := current.Items[:0:0]
			for _, item := range current.Items {
				if !removed.Contains(item) {
					kept = append(kept, item)
				}
			}
			out[t.Column] = value.Set{Elem: current.Elem, Items: kept}
		case PutEntries:
			current, err := mapColumn(out, t.Column, t.Entries)
			if err != nil {
				return nil, err
			}
			out[t.Column] = value.NewMap(current.Key, current.Elem, append(current.Entries, t.Entries...)...)
		case DeleteKeys:
			current, err := mapColumn(out, t.Column, nil)
			if err != nil {
				return nil, err
			}
			removed := value.NewSet(current.Key, t.Keys...)
			kept := current.Entries[:0:0]
			for _, e := range current.Entries {
				if !removed.Contains(e.Key) {
					kept = append(kept, e)
				}
			}
			out[t.Column] = value.Map{Key: current.Key, Elem: current.Elem, Entries: kept}
		default:
			return nil, fmt.Errorf("lattice: unsupported mutation %T", m)
		}
	}
	return out, nil
}

func setColumn(row Row, column string, elements []value.Value) (value.Set, error) {
	switch current := row[column].(type) {
	case nil:
		var elem value.Kind
		if len(elements) > 0 && elements[0] != nil {
			elem = elements[0].Kind()
		}
		return value.Set{Elem: elem}, nil
	case value.Set:
		return current, nil
	default:
		return value.Set{}, fmt.Errorf("lattice: column %q holds %s, not a set", column, current.Kind())
	}
}

func mapColumn(row Row, column string, entries []value.Entry) (value.Map, error) {
	switch current := row[column].(type) {
	case nil:
		m := value.Map{}
		if len(entries) > 0 && entries[0].Key != nil && entries[0].Value != nil {
			m.Key, m.Elem = entries[0].Key.Kind(), entries[0].Value.Kind()
		}
		return m, nil
	case value.Map:
		return current, nil
	default:
		return value.Map{}, fmt.Errorf("lattice: column %q holds %s, not a map", column, current.Kind())
	}
}
