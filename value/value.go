package value

import (
	"math/big"
	"net/netip"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Value is a non-null column value. A nil Value represents null.
//
// The set of implementations is closed: [Boolean], [Decimal], [Varint],
// [Timestamp], [Double], [Float], [Inet], [Int], [Bigint], [Text], [UUID],
// [List], [Set] and [Map].
type Value interface {
	Kind() Kind
	isValue()
}

type (
	// Boolean is a boolean value.
	Boolean bool
	// Double is a 64-bit IEEE-754 value.
	Double float64
	// Float is a 32-bit IEEE-754 value.
	Float float32
	// Int is a 32-bit signed integer.
	Int int32
	// Bigint is a 64-bit signed integer.
	Bigint int64
	// Text is a UTF-8 string.
	Text string
	// UUID is a 128-bit identifier.
	UUID uuid.UUID
)

// Decimal is an arbitrary-precision decimal number.
type Decimal struct{ decimal.Decimal }

// Varint is an arbitrary-precision integer. A nil Int is treated as zero.
type Varint struct{ *big.Int }

// Timestamp is an instant in time.
type Timestamp struct{ time.Time }

// Inet is an IPv4 or IPv6 address.
type Inet struct{ netip.Addr }

// List is an ordered collection of scalar values.
type List struct {
	Elem  Kind
	Items []Value
}

// Set is an unordered collection of distinct scalar values. Items are kept in
// canonical encoding order; use [NewSet] to build one.
type Set struct {
	Elem  Kind
	Items []Value
}

// Entry is a single key-value pair of a [Map].
type Entry struct {
	Key   Value
	Value Value
}

// Map is a collection of entries with distinct scalar keys, kept in canonical
// key order; use [NewMap] to build one.
type Map struct {
	Key     Kind
	Elem    Kind
	Entries []Entry
}

func (Boolean) Kind() Kind   { return KindBoolean }
func (Decimal) Kind() Kind   { return KindDecimal }
func (Varint) Kind() Kind    { return KindVarint }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (Double) Kind() Kind    { return KindDouble }
func (Float) Kind() Kind     { return KindFloat }
func (Inet) Kind() Kind      { return KindInet }
func (Int) Kind() Kind       { return KindInt }
func (Bigint) Kind() Kind    { return KindBigint }
func (Text) Kind() Kind      { return KindText }
func (UUID) Kind() Kind      { return KindUUID }
func (List) Kind() Kind      { return KindList }
func (Set) Kind() Kind       { return KindSet }
func (Map) Kind() Kind       { return KindMap }

func (Boolean) isValue()   {}
func (Decimal) isValue()   {}
func (Varint) isValue()    {}
func (Timestamp) isValue() {}
func (Double) isValue()    {}
func (Float) isValue()     {}
func (Inet) isValue()      {}
func (Int) isValue()       {}
func (Bigint) isValue()    {}
func (Text) isValue()      {}
func (UUID) isValue()      {}
func (List) isValue()      {}
func (Set) isValue()       {}
func (Map) isValue()       {}

// NewList returns a list holding a copy of items.
func NewList(elem Kind, items ...Value) List {
	return List{Elem: elem, Items: append([]Value(nil), items...)}
}

// NewSet returns a set of the distinct items, in canonical order.
func NewSet(elem Kind, items ...Value) Set {
	seen := make(map[string]Value, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		seen[Encode(item)] = item
	}
	return Set{Elem: elem, Items: sortedValues(seen)}
}

// NewMap returns a map of the given entries, in canonical key order. When a
// key repeats, the last entry wins.
func NewMap(key, elem Kind, entries ...Entry) Map {
	byKey := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Key == nil {
			continue
		}
		byKey[Encode(e.Key)] = e
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return Map{Key: key, Elem: elem, Entries: out}
}

// Contains reports whether v is a member of the set.
func (s Set) Contains(v Value) bool {
	enc := Encode(v)
	for _, item := range s.Items {
		if Encode(item) == enc {
			return true
		}
	}
	return false
}

// Get returns the value stored under key.
func (m Map) Get(key Value) (Value, bool) {
	enc := Encode(key)
	for _, e := range m.Entries {
		if Encode(e.Key) == enc {
			return e.Value, true
		}
	}
	return nil, false
}

// TypeOf returns the declared type carried by v. TypeOf(nil) is the zero Type.
func TypeOf(v Value) Type {
	switch t := v.(type) {
	case nil:
		return Type{}
	case List:
		return ListOf(t.Elem)
	case Set:
		return SetOf(t.Elem)
	case Map:
		return MapOf(t.Key, t.Elem)
	default:
		return Scalar(v.Kind())
	}
}

// Empty returns the empty collection of type t, or nil for scalar types.
func Empty(t Type) Value {
	switch t.Kind {
	case KindList:
		return List{Elem: t.Elem}
	case KindSet:
		return Set{Elem: t.Elem}
	case KindMap:
		return Map{Key: t.Key, Elem: t.Elem}
	default:
		return nil
	}
}

// Clone returns a copy of v that shares no mutable state with it.
func Clone(v Value) Value {
	switch t := v.(type) {
	case Varint:
		if t.Int == nil {
			return t
		}
		return Varint{new(big.Int).Set(t.Int)}
	case List:
		return List{Elem: t.Elem, Items: cloneItems(t.Items)}
	case Set:
		return Set{Elem: t.Elem, Items: cloneItems(t.Items)}
	case Map:
		entries := make([]Entry, len(t.Entries))
		for i, e := range t.Entries {
			entries[i] = Entry{Key: Clone(e.Key), Value: Clone(e.Value)}
		}
		return Map{Key: t.Key, Elem: t.Elem, Entries: entries}
	default:
		return v
	}
}

func cloneItems(items []Value) []Value {
	if items == nil {
		return nil
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = Clone(item)
	}
	return out
}

func sortedValues(byEncoding map[string]Value) []Value {
	keys := make([]string, 0, len(byEncoding))
	for k := range byEncoding {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, 0, len(keys))
	for _, k := range keys {
		out = append(out, byEncoding[k])
	}
	return out
}
