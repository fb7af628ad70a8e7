package dynamo

import (
	"fmt"
	"maps"
	"math"
	"math/big"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/jacentio/lattice/internal/keyspace"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// maxKeyBytes is the DynamoDB limit for a sort key; partition keys allow
// more, but one limit keeps both sides of a join table uniform.
const maxKeyBytes = 1024

// rawAttr names the attribute holding the full value of a key column whose
// stored form is a digest or an escaped encoding.
func rawAttr(column string) string {
	return column + "__raw"
}

// escapeName makes an encoding usable as a key attribute or M member name,
// which DynamoDB requires to be non-empty. The empty string and encodings
// that start with the escape byte gain one leading escape byte.
func escapeName(s string) string {
	if s == "" || strings.HasPrefix(s, nameEscape) {
		return nameEscape + s
	}
	return s
}

// unescapeName reverses escapeName.
func unescapeName(s string) string {
	return strings.TrimPrefix(s, nameEscape)
}

const nameEscape = "\x00"

// keyString returns the stored form of a key value and whether it differs
// from the value's encoding, in which case the encoding is kept in the raw
// attribute.
func keyString(v value.Value) (string, bool) {
	s := value.Encode(v)
	stored := escapeName(s)
	if len(stored) > maxKeyBytes {
		return "sha256:" + keyspace.Digest(s), true
	}
	return stored, stored != s
}

// keyItem returns the primary key attributes addressed by keys. Key columns
// are always strings so that every value kind can be a key.
func keyItem(keys []storage.Key) (map[string]types.AttributeValue, error) {
	stored := make(map[string]string, len(keys))
	for _, k := range keys {
		stored[k.Column], _ = keyString(k.Value)
	}
	return attributevalue.MarshalMap(stored)
}

// rawKeys returns the full encodings of key columns whose stored form
// differs, keyed by their raw attribute names.
func rawKeys(keys []storage.Key) map[string]types.AttributeValue {
	var raw map[string]types.AttributeValue
	for _, k := range keys {
		if _, differs := keyString(k.Value); differs {
			if raw == nil {
				raw = make(map[string]types.AttributeValue)
			}
			raw[rawAttr(k.Column)] = &types.AttributeValueMemberS{Value: value.Encode(k.Value)}
		}
	}
	return raw
}

// itemID identifies an item within one batch by its table and key
// attributes.
func itemID(table string, key map[string]types.AttributeValue) string {
	parts := []string{table}
	for _, column := range slices.Sorted(maps.Keys(key)) {
		s, _ := key[column].(*types.AttributeValueMemberS)
		if s == nil {
			parts = append(parts, column, "")
			continue
		}
		parts = append(parts, column, s.Value)
	}
	return keyspace.RowKey(parts...)
}

// encodeAttr converts a value to its attribute form:
//
//   - booleans are BOOL, numbers within DynamoDB's limits are N, every
//     other scalar is S
//   - lists are L
//   - sets are M from encoded element to BOOL true
//   - maps are M from encoded key to the entry value
//
// Sets and maps are stored as M so that elements and entries can be
// changed one by one with document paths.
func encodeAttr(v value.Value) (types.AttributeValue, error) {
	switch t := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case value.List:
		items := make([]types.AttributeValue, 0, len(t.Items))
		for _, item := range t.Items {
			av, err := scalarAttr(item)
			if err != nil {
				return nil, err
			}
			items = append(items, av)
		}
		return &types.AttributeValueMemberL{Value: items}, nil
	case value.Set:
		members := make(map[string]bool, len(t.Items))
		for _, item := range t.Items {
			members[memberName(item)] = true
		}
		return attributevalue.Marshal(members)
	case value.Map:
		members := make(map[string]types.AttributeValue, len(t.Entries))
		for _, e := range t.Entries {
			av, err := scalarAttr(e.Value)
			if err != nil {
				return nil, err
			}
			members[memberName(e.Key)] = av
		}
		return &types.AttributeValueMemberM{Value: members}, nil
	default:
		return scalarAttr(v)
	}
}

func scalarAttr(v value.Value) (types.AttributeValue, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("lattice: null collection element")
	case value.Boolean:
		return &types.AttributeValueMemberBOOL{Value: bool(t)}, nil
	case value.Double:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return &types.AttributeValueMemberS{Value: value.Encode(t)}, nil
		}
		return numberAttr(value.Encode(t)), nil
	case value.Float:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return &types.AttributeValueMemberS{Value: value.Encode(t)}, nil
		}
		return numberAttr(value.Encode(t)), nil
	case value.Decimal, value.Varint, value.Int, value.Bigint:
		return numberAttr(value.Encode(t)), nil
	case value.List, value.Set, value.Map:
		return nil, fmt.Errorf("lattice: nested %s: %w", v.Kind(), value.ErrNotScalar)
	default:
		return &types.AttributeValueMemberS{Value: value.Encode(t)}, nil
	}
}

// DynamoDB number limits: 38 significant digits, magnitudes from 1E-130
// up to 1E+126 exclusive.
const (
	maxNumberDigits   = 38
	minNumberExponent = -130
	maxNumberExponent = 125
)

// numberAttr returns N for a numeric encoding DynamoDB can hold and S for
// one outside its precision or range.
func numberAttr(encoded string) types.AttributeValue {
	if fitsNumber(encoded) {
		return &types.AttributeValueMemberN{Value: encoded}
	}
	return &types.AttributeValueMemberS{Value: encoded}
}

func fitsNumber(encoded string) bool {
	d, err := decimal.NewFromString(encoded)
	if err != nil {
		return false
	}
	if d.IsZero() {
		return true
	}
	coef := new(big.Int).Abs(d.Coefficient())
	exp := int64(d.Exponent())
	ten := big.NewInt(10)
	for {
		q, r := new(big.Int).QuoRem(coef, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		coef = q
		exp++
	}
	digits := int64(len(coef.String()))
	magnitude := exp + digits - 1
	return digits <= maxNumberDigits && magnitude >= minNumberExponent && magnitude <= maxNumberExponent
}

// memberName returns the M member name of a set element or map key.
func memberName(v value.Value) string {
	return escapeName(value.Encode(v))
}

// decodeAttr converts an attribute back to a value of type t.
func decodeAttr(t value.Type, av types.AttributeValue) (value.Value, error) {
	if _, ok := av.(*types.AttributeValueMemberNULL); ok || av == nil {
		return nil, nil
	}

	switch t.Kind {
	case value.KindList:
		l, ok := av.(*types.AttributeValueMemberL)
		if !ok {
			return nil, fmt.Errorf("lattice: expected L for %s, got %T", t, av)
		}
		items := make([]value.Value, 0, len(l.Value))
		for _, item := range l.Value {
			v, err := decodeScalar(t.Elem, item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return value.NewList(t.Elem, items...), nil
	case value.KindSet:
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("lattice: expected M for %s, got %T", t, av)
		}
		var members map[string]bool
		if err := attributevalue.UnmarshalMap(m.Value, &members); err != nil {
			return nil, fmt.Errorf("lattice: set members of %s: %w", t, err)
		}
		items := make([]value.Value, 0, len(members))
		for name := range members {
			v, err := value.Decode(t.Elem, unescapeName(name))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return value.NewSet(t.Elem, items...), nil
	case value.KindMap:
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("lattice: expected M for %s, got %T", t, av)
		}
		entries := make([]value.Entry, 0, len(m.Value))
		for name, member := range m.Value {
			k, err := value.Decode(t.Key, unescapeName(name))
			if err != nil {
				return nil, err
			}
			v, err := decodeScalar(t.Elem, member)
			if err != nil {
				return nil, err
			}
			entries = append(entries, value.Entry{Key: k, Value: v})
		}
		return value.NewMap(t.Key, t.Elem, entries...), nil
	default:
		return decodeScalar(t.Kind, av)
	}
}

func decodeScalar(k value.Kind, av types.AttributeValue) (value.Value, error) {
	switch m := av.(type) {
	case *types.AttributeValueMemberN:
		return value.Decode(k, m.Value)
	case *types.AttributeValueMemberS:
		return value.Decode(k, m.Value)
	case *types.AttributeValueMemberBOOL:
		if k != value.KindBoolean {
			return nil, fmt.Errorf("lattice: expected %s, got BOOL", k)
		}
		return value.Boolean(m.Value), nil
	default:
		return nil, fmt.Errorf("lattice: cannot decode %s from %T", k, av)
	}
}

// decodeItem converts an item to a row holding the requested columns.
func decodeItem(item map[string]types.AttributeValue, columns []storage.Column) (storage.Row, error) {
	row := make(storage.Row, len(columns))
	for _, c := range columns {
		av, ok := item[rawAttr(c.Name)]
		if !ok {
			av, ok = item[c.Name]
		}
		if !ok {
			continue
		}
		v, err := decodeAttr(c.Type, av)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		if v != nil {
			row[c.Name] = v
		}
	}
	return row, nil
}
