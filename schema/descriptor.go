package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/internal/keyspace"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// UpdateStrategy selects how a changed collection column is written.
type UpdateStrategy uint8

const (
	// StrategyDefault resolves to StrategyElement for sets and maps and to
	// StrategyReplace for lists.
	StrategyDefault UpdateStrategy = iota
	// StrategyElement writes only the added and removed elements or entries.
	StrategyElement
	// StrategyReplace rewrites the whole column value.
	StrategyReplace
)

func (s UpdateStrategy) String() string {
	switch s {
	case StrategyElement:
		return "element"
	case StrategyReplace:
		return "replace"
	default:
		return "default"
	}
}

// ParseStrategy resolves "element", "replace" or "" (default).
func ParseStrategy(name string) (UpdateStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return StrategyDefault, nil
	case "element":
		return StrategyElement, nil
	case "replace":
		return StrategyReplace, nil
	default:
		return StrategyDefault, fmt.Errorf("unknown update strategy %q", name)
	}
}

// IDSpec describes the identifier column of an entity.
type IDSpec struct {
	Column string
	get    func(any) uuid.UUID
	set    func(any, uuid.UUID)
}

// Get returns the identifier of instance; uuid.Nil means unassigned.
func (s IDSpec) Get(instance any) uuid.UUID { return s.get(instance) }

// Set assigns the identifier of instance.
func (s IDSpec) Set(instance any, id uuid.UUID) { s.set(instance, id) }

// ColumnSpec describes one non-identifier column.
type ColumnSpec struct {
	Name     string
	Type     value.Type
	Indexed  bool
	Strategy UpdateStrategy

	get     func(any) value.Value
	set     func(any, value.Value) error
	convert func(any) (value.Value, error)
}

// IsCollection reports whether the column holds a list, set or map.
func (c ColumnSpec) IsCollection() bool { return c.Type.Kind.IsCollection() }

// Get reads the column from instance. Null reads as nil; collections are
// never nil.
func (c ColumnSpec) Get(instance any) value.Value { return c.get(instance) }

// Set writes v into instance. A nil v stores the field's null/zero value.
func (c ColumnSpec) Set(instance any, v value.Value) error {
	if err := c.set(instance, v); err != nil {
		return fmt.Errorf("column %q: %w", c.Name, err)
	}
	return nil
}

// Convert turns a caller-supplied value (either a value.Value or the column's
// Go field type) into a value of the column's kind.
func (c ColumnSpec) Convert(x any) (value.Value, error) {
	if c.convert == nil {
		if v, ok := x.(value.Value); ok && v.Kind() == c.Type.Kind {
			return v, nil
		}
		return nil, fmt.Errorf("column %q: expected %s value, got %T", c.Name, c.Type, x)
	}
	v, err := c.convert(x)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.Name, err)
	}
	return v, nil
}

// RelationSpec describes a one-to-many association materialised as a join table.
type RelationSpec struct {
	Field string

	ownerTable string
	related    *Descriptor
	get        func(any) []any
	set        func(any, []any)
}

// Related returns the descriptor of the related entity type.
func (r RelationSpec) Related() *Descriptor { return r.related }

// Get returns the related instances currently referenced by instance.
func (r RelationSpec) Get(instance any) []any { return r.get(instance) }

// Set replaces the related instances referenced by instance.
func (r RelationSpec) Set(instance any, related []any) { r.set(instance, related) }

// JoinTable names the table holding this relation's edges.
func (r RelationSpec) JoinTable() string {
	return keyspace.JoinTable(r.ownerTable, r.related.table)
}

// OwnerColumn names the join-table column holding the owner identifier.
func (r RelationSpec) OwnerColumn() string {
	return keyspace.JoinColumn(r.ownerTable)
}

// RelatedColumn names the join-table column holding the related identifier.
func (r RelationSpec) RelatedColumn() string {
	if r.related.table == r.ownerTable {
		return keyspace.JoinColumn(r.ownerTable + "_related")
	}
	return keyspace.JoinColumn(r.related.table)
}

// Descriptor is the immutable structural description of an entity type.
type Descriptor struct {
	entity    string
	table     string
	id        IDSpec
	columns   []ColumnSpec
	byName    map[string]int
	relations []RelationSpec
	newFn     func() any
}

// Entity returns the entity name.
func (d *Descriptor) Entity() string { return d.entity }

// Table returns the primary table name.
func (d *Descriptor) Table() string { return d.table }

// ID returns the identifier spec.
func (d *Descriptor) ID() IDSpec { return d.id }

// Columns returns all non-identifier columns in declaration order.
func (d *Descriptor) Columns() []ColumnSpec { return d.columns }

// Relations returns the one-to-many relations in declaration order.
func (d *Descriptor) Relations() []RelationSpec { return d.relations }

// Column looks up a column by storage name.
func (d *Descriptor) Column(name string) (ColumnSpec, bool) {
	i, ok := d.byName[name]
	if !ok {
		return ColumnSpec{}, false
	}
	return d.columns[i], true
}

// IsIndexed reports whether name is a declared, indexed column.
func (d *Descriptor) IsIndexed(name string) bool {
	c, ok := d.Column(name)
	return ok && c.Indexed
}

// StandardColumns returns the non-collection columns.
func (d *Descriptor) StandardColumns() []ColumnSpec {
	return d.filterColumns(func(c ColumnSpec) bool { return !c.IsCollection() })
}

// CollectionColumns returns the list, set and map columns.
func (d *Descriptor) CollectionColumns() []ColumnSpec {
	return d.filterColumns(ColumnSpec.IsCollection)
}

// IndexedColumns returns the columns with a shadow index table.
func (d *Descriptor) IndexedColumns() []ColumnSpec {
	return d.filterColumns(func(c ColumnSpec) bool { return c.Indexed })
}

func (d *Descriptor) filterColumns(keep func(ColumnSpec) bool) []ColumnSpec {
	var out []ColumnSpec
	for _, c := range d.columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Bound reports whether the descriptor carries field accessors. Descriptors
// built from configuration are unbound and serve DDL and provisioning only.
func (d *Descriptor) Bound() bool { return d.newFn != nil }

// New returns a fresh zero instance (a pointer to the entity type).
func (d *Descriptor) New() any { return d.newFn() }

// IndexTable names the shadow table of an indexed column.
func (d *Descriptor) IndexTable(column string) string {
	return keyspace.IndexTable(d.table, column)
}

// OwnerColumn names the column carrying this entity's identifier in its
// index tables.
func (d *Descriptor) OwnerColumn() string {
	return keyspace.JoinColumn(d.table)
}

// Tables returns the physical layout of the primary table, one index table
// per indexed column and one join table per relation.
func (d *Descriptor) Tables() []storage.TableDef {
	uuidType := value.Scalar(value.KindUUID)

	primary := storage.TableDef{
		Name:      d.table,
		Role:      storage.RolePrimary,
		Partition: storage.Column{Name: d.id.Column, Type: uuidType},
	}
	for _, c := range d.columns {
		primary.Columns = append(primary.Columns, storage.Column{Name: c.Name, Type: c.Type})
	}
	tables := []storage.TableDef{primary}

	for _, c := range d.IndexedColumns() {
		tables = append(tables, storage.TableDef{
			Name:      d.IndexTable(c.Name),
			Role:      storage.RoleIndex,
			Partition: storage.Column{Name: c.Name, Type: c.Type},
			Columns:   []storage.Column{{Name: d.OwnerColumn(), Type: uuidType}},
		})
	}

	for _, r := range d.relations {
		sort := storage.Column{Name: r.RelatedColumn(), Type: uuidType}
		tables = append(tables, storage.TableDef{
			Name:         r.JoinTable(),
			Role:         storage.RoleJoin,
			Partition:    storage.Column{Name: r.OwnerColumn(), Type: uuidType},
			Sort:         &sort,
			ReverseIndex: keyspace.ReverseIndex(r.JoinTable()),
		})
	}
	return tables
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("Descriptor[entity=%s, table=%s]", d.entity, d.table)
}

// assemble validates the collected declarations and fills d. It is shared by
// the typed builder and configuration-defined entities. Identity fields are
// filled before relations resolve so that cyclic references observe them.
func assemble(d *Descriptor, decl declaration, resolve func(relationDecl) (*Descriptor, error)) error {
	entity := decl.entity
	if len(decl.errs) > 0 {
		return decl.errs[0]
	}
	if strings.TrimSpace(entity) == "" {
		return schemaErr("<unnamed>", "", "entity name is required")
	}

	table := decl.table
	if table == "" {
		table = entity
	}

	switch {
	case decl.idCount == 0:
		return schemaErr(entity, "", "missing identifier")
	case decl.idCount > 1:
		return schemaErr(entity, "", "multiple identifiers declared")
	}
	idColumn := decl.id.Column
	if idColumn == "" {
		idColumn = keyspace.DefaultIDColumn
	}

	if len(decl.columns) == 0 {
		return schemaErr(entity, "", "at least one non-identifier column is required")
	}

	byName := make(map[string]int, len(decl.columns))
	columns := make([]ColumnSpec, 0, len(decl.columns))
	for _, c := range decl.columns {
		if strings.TrimSpace(c.Name) == "" {
			return schemaErr(entity, "", "column name is required")
		}
		if c.Name == idColumn {
			return schemaErr(entity, c.Name, "column name collides with identifier")
		}
		if _, dup := byName[c.Name]; dup {
			return schemaErr(entity, c.Name, "duplicate column")
		}
		if err := c.Type.Validate(); err != nil {
			return &Error{Entity: entity, Field: c.Name, Reason: "unsupported column type", Err: err}
		}
		if c.IsCollection() {
			if c.Indexed {
				return schemaErr(entity, c.Name, "collection columns cannot be indexed")
			}
			switch {
			case c.Type.Kind == value.KindList && c.Strategy == StrategyElement:
				return schemaErr(entity, c.Name, "element update strategy is not supported for lists")
			case c.Strategy == StrategyDefault && c.Type.Kind == value.KindList:
				c.Strategy = StrategyReplace
			case c.Strategy == StrategyDefault:
				c.Strategy = StrategyElement
			}
		} else if c.Strategy != StrategyDefault {
			return schemaErr(entity, c.Name, "update strategy applies to collection columns only")
		}
		byName[c.Name] = len(columns)
		columns = append(columns, c)
	}

	d.entity = entity
	d.table = table
	d.id = IDSpec{Column: idColumn, get: decl.id.get, set: decl.id.set}
	d.columns = columns
	d.byName = byName
	d.newFn = decl.newFn

	joinTables := make(map[string]string, len(decl.relations))
	for _, rel := range decl.relations {
		related, err := resolve(rel)
		if err != nil {
			return &Error{Entity: entity, Field: rel.field, Reason: "related entity schema", Err: err}
		}
		spec := RelationSpec{
			Field:      rel.field,
			ownerTable: table,
			related:    related,
			get:        rel.get,
			set:        rel.set,
		}
		joinTable := keyspace.JoinTable(table, related.table)
		if other, dup := joinTables[joinTable]; dup {
			return schemaErr(entity, rel.field, "relation shares join table %s with field %q", joinTable, other)
		}
		joinTables[joinTable] = rel.field
		d.relations = append(d.relations, spec)
	}
	return nil
}

// declaration is the raw, unvalidated description of an entity.
type declaration struct {
	entity    string
	table     string
	idCount   int
	id        IDSpec
	columns   []ColumnSpec
	relations []relationDecl
	newFn     func() any
	errs      []error
}

type relationDecl struct {
	field string
	// target identifies the related entity: a reflect.Type for typed
	// builders, an entity name for configuration definitions.
	target any
	get    func(any) []any
	set    func(any, []any)
}
