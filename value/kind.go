// Package value defines the closed set of column value kinds supported by the
// mapper and a tagged union over them.
//
// Every column stored by lattice holds either nil (null) or one of the
// concrete types declared in this package. Scalars are immutable; collection
// values ([List], [Set], [Map]) hold scalar elements only.
package value

import (
	"fmt"
	"strings"
)

// Kind identifies one member of the fixed value-kind set.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindDecimal
	KindVarint
	KindTimestamp
	KindDouble
	KindFloat
	KindInet
	KindInt
	KindBigint
	KindText
	KindUUID
	KindList
	KindSet
	KindMap
)

// kindNames doubles as the native column type name of each kind.
var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindBoolean:   "boolean",
	KindDecimal:   "decimal",
	KindVarint:    "varint",
	KindTimestamp: "timestamp",
	KindDouble:    "double",
	KindFloat:     "float",
	KindInet:      "inet",
	KindInt:       "int",
	KindBigint:    "bigint",
	KindText:      "text",
	KindUUID:      "uuid",
	KindList:      "list",
	KindSet:       "set",
	KindMap:       "map",
}

// String returns the native type name of the kind (e.g. "bigint").
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a member of the supported kind set.
func (k Kind) Valid() bool {
	return k > KindInvalid && k <= KindMap
}

// IsCollection reports whether k is one of the collection shapes.
func (k Kind) IsCollection() bool {
	return k == KindList || k == KindSet || k == KindMap
}

// IsScalar reports whether k is a supported non-collection kind.
func (k Kind) IsScalar() bool {
	return k.Valid() && !k.IsCollection()
}

// ParseKind resolves a native type name to its Kind. Matching is case-insensitive.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for k := KindBoolean; k <= KindMap; k++ {
		if kindNames[k] == normalized {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("lattice: unsupported value kind %q", name)
}

// Type is the full declared type of a column: its kind plus, for collections,
// the element kind (list/set elements, map values) and the map key kind.
type Type struct {
	Kind Kind
	Key  Kind
	Elem Kind
}

// Scalar returns the Type of a non-collection column.
func Scalar(k Kind) Type { return Type{Kind: k} }

// ListOf returns the Type of an ordered list column.
func ListOf(elem Kind) Type { return Type{Kind: KindList, Elem: elem} }

// SetOf returns the Type of an unordered set column.
func SetOf(elem Kind) Type { return Type{Kind: KindSet, Elem: elem} }

// MapOf returns the Type of a key-value map column.
func MapOf(key, elem Kind) Type { return Type{Kind: KindMap, Key: key, Elem: elem} }

// Validate checks that the type is built from supported kinds and that
// collection parameters are scalars.
func (t Type) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unsupported kind %s", t.Kind)
	}
	switch t.Kind {
	case KindList, KindSet:
		if !t.Elem.IsScalar() {
			return fmt.Errorf("unsupported %s element kind %s", t.Kind, t.Elem)
		}
	case KindMap:
		if !t.Key.IsScalar() {
			return fmt.Errorf("unsupported map key kind %s", t.Key)
		}
		if !t.Elem.IsScalar() {
			return fmt.Errorf("unsupported map value kind %s", t.Elem)
		}
	}
	return nil
}

// String renders the type using native parameterised names, e.g. "map<text, int>".
func (t Type) String() string {
	switch t.Kind {
	case KindList, KindSet:
		return fmt.Sprintf("%s<%s>", t.Kind, t.Elem)
	case KindMap:
		return fmt.Sprintf("%s<%s, %s>", t.Kind, t.Key, t.Elem)
	default:
		return t.Kind.String()
	}
}

// ParseType parses the form produced by [Type.String], such as "int",
// "set<text>" or "map<text, bigint>".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '<')
	if open < 0 {
		k, err := ParseKind(s)
		if err != nil {
			return Type{}, err
		}
		t := Scalar(k)
		return t, t.Validate()
	}
	if !strings.HasSuffix(s, ">") {
		return Type{}, fmt.Errorf("lattice: malformed type %q", s)
	}

	outer, err := ParseKind(s[:open])
	if err != nil {
		return Type{}, err
	}
	params := strings.Split(s[open+1:len(s)-1], ",")
	kinds := make([]Kind, len(params))
	for i, p := range params {
		if kinds[i], err = ParseKind(p); err != nil {
			return Type{}, err
		}
	}

	var t Type
	switch {
	case (outer == KindList || outer == KindSet) && len(kinds) == 1:
		t = Type{Kind: outer, Elem: kinds[0]}
	case outer == KindMap && len(kinds) == 2:
		t = MapOf(kinds[0], kinds[1])
	default:
		return Type{}, fmt.Errorf("lattice: malformed type %q", s)
	}
	if err := t.Validate(); err != nil {
		return Type{}, fmt.Errorf("lattice: type %q: %w", s, err)
	}
	return t, nil
}
