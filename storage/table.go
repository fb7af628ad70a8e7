package storage

import "github.com/jacentio/lattice/value"

// Column is a named, typed column.
type Column struct {
	Name string
	Type value.Type
}

// TableRole distinguishes canonical tables from the synthetic ones lattice
// maintains alongside them.
type TableRole uint8

const (
	// RolePrimary is an entity's canonical table, keyed by identifier.
	RolePrimary TableRole = iota
	// RoleIndex maps an indexed column value to its owning identifier.
	RoleIndex
	// RoleJoin holds one row per one-to-many membership edge.
	RoleJoin
)

func (r TableRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleIndex:
		return "index"
	case RoleJoin:
		return "join"
	default:
		return "unknown"
	}
}

// TableDef is the physical layout of one table.
type TableDef struct {
	Name      string
	Role      TableRole
	Partition Column
	// Sort is the optional clustering/sort key (join tables only).
	Sort *Column
	// Columns are the non-key columns.
	Columns []Column
	// ReverseIndex, when set, names a secondary index keyed by the sort
	// column; join tables use it to find edges by related identifier.
	ReverseIndex string
}

// KeyColumns returns the partition column followed by the sort column, if any.
func (t TableDef) KeyColumns() []Column {
	if t.Sort == nil {
		return []Column{t.Partition}
	}
	return []Column{t.Partition, *t.Sort}
}

// AllColumns returns the key columns followed by the non-key columns.
func (t TableDef) AllColumns() []Column {
	return append(t.KeyColumns(), t.Columns...)
}
