package schema

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/value"
)

// Builder collects the declarations of entity type T. It is handed to the
// build function passed to [Define] or [Register].
type Builder[T any] struct {
	decl declaration
}

// ColumnOption adjusts a column declaration.
type ColumnOption func(*ColumnSpec)

// Indexed maintains a shadow table mapping the column's value to the owning
// identifier. Only scalar columns may be indexed.
func Indexed() ColumnOption {
	return func(c *ColumnSpec) { c.Indexed = true }
}

// Strategy selects the update strategy of a collection column.
func Strategy(s UpdateStrategy) ColumnOption {
	return func(c *ColumnSpec) { c.Strategy = s }
}

// Table overrides the storage table name, which defaults to the entity name.
func (b *Builder[T]) Table(name string) *Builder[T] {
	b.decl.table = name
	return b
}

// ID declares the identifier field. An empty column name stores it as "id".
func (b *Builder[T]) ID(column string, field func(*T) *uuid.UUID) *Builder[T] {
	b.decl.idCount++
	b.decl.id = IDSpec{
		Column: column,
		get:    func(inst any) uuid.UUID { return *field(inst.(*T)) },
		set:    func(inst any, id uuid.UUID) { *field(inst.(*T)) = id },
	}
	return b
}

// New overrides the zero-instance constructor used when reading, which
// defaults to new(T).
func (b *Builder[T]) New(fn func() *T) *Builder[T] {
	b.decl.newFn = func() any { return fn() }
	return b
}

func (b *Builder[T]) addColumn(spec ColumnSpec, opts []ColumnOption) {
	for _, opt := range opts {
		opt(&spec)
	}
	b.decl.columns = append(b.decl.columns, spec)
}

// Column declares a non-null scalar column backed by a field of type F.
func Column[T, F any](b *Builder[T], name string, codec Codec[F], field func(*T) *F, opts ...ColumnOption) {
	b.addColumn(ColumnSpec{
		Name: name,
		Type: value.Scalar(codec.kind),
		get:  func(inst any) value.Value { return codec.encode(*field(inst.(*T))) },
		set: func(inst any, v value.Value) error {
			var f F
			if v != nil {
				var err error
				if f, err = codec.decode(v); err != nil {
					return err
				}
			}
			*field(inst.(*T)) = f
			return nil
		},
		convert: codec.convert,
	}, opts)
}

// OptionalColumn declares a nullable scalar column backed by a pointer field;
// a nil pointer is null.
func OptionalColumn[T, F any](b *Builder[T], name string, codec Codec[F], field func(*T) **F, opts ...ColumnOption) {
	b.addColumn(ColumnSpec{
		Name: name,
		Type: value.Scalar(codec.kind),
		get: func(inst any) value.Value {
			p := *field(inst.(*T))
			if p == nil {
				return nil
			}
			return codec.encode(*p)
		},
		set: func(inst any, v value.Value) error {
			if v == nil {
				*field(inst.(*T)) = nil
				return nil
			}
			f, err := codec.decode(v)
			if err != nil {
				return err
			}
			*field(inst.(*T)) = &f
			return nil
		},
		convert: func(x any) (value.Value, error) {
			if p, ok := x.(*F); ok && p != nil {
				return codec.encode(*p), nil
			}
			return codec.convert(x)
		},
	}, opts)
}

// ListColumn declares an ordered list column. A nil slice is stored as an
// empty list.
func ListColumn[T, E any](b *Builder[T], name string, codec Codec[E], field func(*T) *[]E, opts ...ColumnOption) {
	b.addColumn(ColumnSpec{
		Name: name,
		Type: value.ListOf(codec.kind),
		get: func(inst any) value.Value {
			return value.NewList(codec.kind, encodeAll(codec, *field(inst.(*T)))...)
		},
		set: func(inst any, v value.Value) error {
			items, err := collectionItems(v, value.KindList)
			if err != nil {
				return err
			}
			out, err := decodeAll(codec, items)
			if err != nil {
				return err
			}
			*field(inst.(*T)) = out
			return nil
		},
		convert: func(x any) (value.Value, error) {
			if s, ok := x.([]E); ok {
				return value.NewList(codec.kind, encodeAll(codec, s)...), nil
			}
			return convertCollection(x, value.ListOf(codec.kind))
		},
	}, opts)
}

// SetColumn declares a set column backed by a slice. Duplicates collapse on
// write and elements read back in canonical order.
func SetColumn[T, E any](b *Builder[T], name string, codec Codec[E], field func(*T) *[]E, opts ...ColumnOption) {
	b.addColumn(ColumnSpec{
		Name: name,
		Type: value.SetOf(codec.kind),
		get: func(inst any) value.Value {
			return value.NewSet(codec.kind, encodeAll(codec, *field(inst.(*T)))...)
		},
		set: func(inst any, v value.Value) error {
			items, err := collectionItems(v, value.KindSet)
			if err != nil {
				return err
			}
			out, err := decodeAll(codec, items)
			if err != nil {
				return err
			}
			*field(inst.(*T)) = out
			return nil
		},
		convert: func(x any) (value.Value, error) {
			if s, ok := x.([]E); ok {
				return value.NewSet(codec.kind, encodeAll(codec, s)...), nil
			}
			return convertCollection(x, value.SetOf(codec.kind))
		},
	}, opts)
}

// MapColumn declares a map column. A nil map is stored as an empty map.
func MapColumn[T any, K comparable, V any](b *Builder[T], name string, keys Codec[K], vals Codec[V], field func(*T) *map[K]V, opts ...ColumnOption) {
	toValue := func(m map[K]V) value.Value {
		entries := make([]value.Entry, 0, len(m))
		for k, v := range m {
			entries = append(entries, value.Entry{Key: keys.encode(k), Value: vals.encode(v)})
		}
		return value.NewMap(keys.kind, vals.kind, entries...)
	}
	b.addColumn(ColumnSpec{
		Name: name,
		Type: value.MapOf(keys.kind, vals.kind),
		get:  func(inst any) value.Value { return toValue(*field(inst.(*T))) },
		set: func(inst any, v value.Value) error {
			var entries []value.Entry
			if v != nil {
				m, ok := v.(value.Map)
				if !ok {
					return fmt.Errorf("cannot decode %s into map field", v.Kind())
				}
				entries = m.Entries
			}
			out := make(map[K]V, len(entries))
			for _, e := range entries {
				k, err := keys.decode(e.Key)
				if err != nil {
					return err
				}
				val, err := vals.decode(e.Value)
				if err != nil {
					return err
				}
				out[k] = val
			}
			*field(inst.(*T)) = out
			return nil
		},
		convert: func(x any) (value.Value, error) {
			if m, ok := x.(map[K]V); ok {
				return toValue(m), nil
			}
			return convertCollection(x, value.MapOf(keys.kind, vals.kind))
		},
	}, opts)
}

// OneToMany declares a relation from T to the registered entity type R,
// persisted in the join table "<T table>_<R table>".
func OneToMany[T, R any](b *Builder[T], field string, related func(*T) *[]*R) {
	b.decl.relations = append(b.decl.relations, relationDecl{
		field:  field,
		target: reflect.TypeFor[R](),
		get: func(inst any) []any {
			items := *related(inst.(*T))
			out := make([]any, 0, len(items))
			for _, r := range items {
				if r != nil {
					out = append(out, r)
				}
			}
			return out
		},
		set: func(inst any, items []any) {
			out := make([]*R, 0, len(items))
			for _, item := range items {
				out = append(out, item.(*R))
			}
			*related(inst.(*T)) = out
		},
	})
}

func (b *Builder[T]) declaration(entity string) declaration {
	decl := b.decl
	decl.entity = entity
	if decl.newFn == nil {
		decl.newFn = func() any { return new(T) }
	}
	return decl
}

func encodeAll[E any](codec Codec[E], items []E) []value.Value {
	out := make([]value.Value, len(items))
	for i, item := range items {
		out[i] = codec.encode(item)
	}
	return out
}

func decodeAll[E any](codec Codec[E], items []value.Value) ([]E, error) {
	out := make([]E, 0, len(items))
	for _, item := range items {
		e, err := codec.decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func collectionItems(v value.Value, kind value.Kind) ([]value.Value, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case value.List:
		if kind == value.KindList {
			return t.Items, nil
		}
	case value.Set:
		if kind == value.KindSet {
			return t.Items, nil
		}
	}
	return nil, fmt.Errorf("cannot decode %s into %s field", v.Kind(), kind)
}

func convertCollection(x any, want value.Type) (value.Value, error) {
	v, ok := x.(value.Value)
	if !ok {
		return nil, fmt.Errorf("expected %s value, got %T", want, x)
	}
	if got := value.TypeOf(v); got != want {
		return nil, fmt.Errorf("expected %s value, got %s", want, got)
	}
	return v, nil
}
