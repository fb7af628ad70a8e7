package value

import (
	"errors"
	"fmt"
	"math/big"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotScalar is returned when a scalar-only operation receives a collection.
var ErrNotScalar = errors.New("lattice: value kind is not scalar")

// Encode returns the canonical text form of v. Two values are equal exactly
// when their encodings are equal. Scalars encode to a form accepted by
// [Decode]; collections encode to a quoted composite used only for identity.
// Encode(nil) is the empty string.
func Encode(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case Boolean:
		return strconv.FormatBool(bool(t))
	case Decimal:
		return t.Decimal.String()
	case Varint:
		if t.Int == nil {
			return "0"
		}
		return t.Int.String()
	case Timestamp:
		return t.Time.UTC().Format(time.RFC3339Nano)
	case Double:
		return strconv.FormatFloat(float64(t), 'g', -1, 64)
	case Float:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case Inet:
		if !t.Addr.IsValid() {
			return ""
		}
		return t.Addr.String()
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Bigint:
		return strconv.FormatInt(int64(t), 10)
	case Text:
		return string(t)
	case UUID:
		return uuid.UUID(t).String()
	case List:
		return encodeItems("[", t.Items, "]")
	case Set:
		return encodeItems("{", NewSet(t.Elem, t.Items...).Items, "}")
	case Map:
		normalized := NewMap(t.Key, t.Elem, t.Entries...)
		var b strings.Builder
		b.WriteString("{")
		for i, e := range normalized.Entries {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(strconv.Quote(Encode(e.Key)))
			b.WriteString(":")
			b.WriteString(strconv.Quote(Encode(e.Value)))
		}
		b.WriteString("}")
		return b.String()
	default:
		panic(fmt.Sprintf("lattice: unhandled value type %T", v))
	}
}

func encodeItems(open string, items []Value, close string) string {
	var b strings.Builder
	b.WriteString(open)
	for i, item := range items {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.Quote(Encode(item)))
	}
	b.WriteString(close)
	return b.String()
}

// Decode parses the canonical text form of a scalar of kind k.
func Decode(k Kind, s string) (Value, error) {
	switch k {
	case KindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("decode boolean: %w", err)
		}
		return Boolean(b), nil
	case KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("decode decimal: %w", err)
		}
		return Decimal{d}, nil
	case KindVarint:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("decode varint: invalid integer %q", s)
		}
		return Varint{n}, nil
	case KindTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decode timestamp: %w", err)
		}
		return Timestamp{ts.UTC()}, nil
	case KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("decode double: %w", err)
		}
		return Double(f), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("decode float: %w", err)
		}
		return Float(float32(f)), nil
	case KindInet:
		if s == "" {
			return Inet{}, nil
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("decode inet: %w", err)
		}
		return Inet{addr}, nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decode int: %w", err)
		}
		return Int(int32(n)), nil
	case KindBigint:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode bigint: %w", err)
		}
		return Bigint(n), nil
	case KindText:
		return Text(s), nil
	case KindUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("decode uuid: %w", err)
		}
		return UUID(id), nil
	case KindList, KindSet, KindMap:
		return nil, fmt.Errorf("decode %s: %w", k, ErrNotScalar)
	default:
		return nil, fmt.Errorf("decode: unsupported kind %s", k)
	}
}

// Equal reports whether a and b are structurally equal. Sets and maps compare
// without regard to order; lists compare element by element.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case List:
		bt := b.(List)
		if len(at.Items) != len(bt.Items) {
			return false
		}
		for i := range at.Items {
			if !Equal(at.Items[i], bt.Items[i]) {
				return false
			}
		}
		return true
	case Set:
		return Encode(at) == Encode(b.(Set))
	case Map:
		return Encode(at) == Encode(b.(Map))
	default:
		return Encode(a) == Encode(b)
	}
}
