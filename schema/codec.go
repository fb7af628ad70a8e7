package schema

import (
	"fmt"
	"math/big"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jacentio/lattice/value"
)

// Codec converts between a Go field type and a scalar [value.Value].
type Codec[E any] struct {
	kind value.Kind
	to   func(E) value.Value
	from func(value.Value) (E, error)
}

// NewCodec builds a codec for a custom Go type stored as kind.
func NewCodec[E any](kind value.Kind, to func(E) value.Value, from func(value.Value) (E, error)) Codec[E] {
	return Codec[E]{kind: kind, to: to, from: from}
}

// Kind returns the value kind the codec produces.
func (c Codec[E]) Kind() value.Kind { return c.kind }

func (c Codec[E]) encode(e E) value.Value { return c.to(e) }

func (c Codec[E]) decode(v value.Value) (E, error) {
	if v.Kind() != c.kind {
		var zero E
		return zero, fmt.Errorf("cannot decode %s into %s field", v.Kind(), c.kind)
	}
	return c.from(v)
}

// convert accepts either a value.Value of the codec's kind or a Go value of type E.
func (c Codec[E]) convert(x any) (value.Value, error) {
	switch t := x.(type) {
	case nil:
		return nil, fmt.Errorf("nil %s value", c.kind)
	case value.Value:
		if t.Kind() != c.kind {
			return nil, fmt.Errorf("expected %s value, got %s", c.kind, t.Kind())
		}
		return t, nil
	}
	e, ok := x.(E)
	if !ok {
		return nil, fmt.Errorf("expected %s value, got %T", c.kind, x)
	}
	return c.to(e), nil
}

func scalarCodec[E any, V value.Value](kind value.Kind, to func(E) V, from func(V) E) Codec[E] {
	return Codec[E]{
		kind: kind,
		to:   func(e E) value.Value { return to(e) },
		from: func(v value.Value) (E, error) {
			t, ok := v.(V)
			if !ok {
				var zero E
				return zero, fmt.Errorf("unexpected %T for %s", v, kind)
			}
			return from(t), nil
		},
	}
}

// Codecs for the Go types backing each scalar kind.
var (
	Boolean = scalarCodec(value.KindBoolean,
		func(b bool) value.Boolean { return value.Boolean(b) },
		func(v value.Boolean) bool { return bool(v) })
	Decimal = scalarCodec(value.KindDecimal,
		func(d decimal.Decimal) value.Decimal { return value.Decimal{Decimal: d} },
		func(v value.Decimal) decimal.Decimal { return v.Decimal })
	Varint = scalarCodec(value.KindVarint,
		func(n *big.Int) value.Varint {
			if n == nil {
				return value.Varint{Int: new(big.Int)}
			}
			return value.Varint{Int: new(big.Int).Set(n)}
		},
		func(v value.Varint) *big.Int {
			if v.Int == nil {
				return new(big.Int)
			}
			return new(big.Int).Set(v.Int)
		})
	Timestamp = scalarCodec(value.KindTimestamp,
		func(t time.Time) value.Timestamp { return value.Timestamp{Time: t} },
		func(v value.Timestamp) time.Time { return v.Time })
	Double = scalarCodec(value.KindDouble,
		func(f float64) value.Double { return value.Double(f) },
		func(v value.Double) float64 { return float64(v) })
	Float = scalarCodec(value.KindFloat,
		func(f float32) value.Float { return value.Float(f) },
		func(v value.Float) float32 { return float32(v) })
	Inet = scalarCodec(value.KindInet,
		func(a netip.Addr) value.Inet { return value.Inet{Addr: a} },
		func(v value.Inet) netip.Addr { return v.Addr })
	Int = scalarCodec(value.KindInt,
		func(n int32) value.Int { return value.Int(n) },
		func(v value.Int) int32 { return int32(v) })
	Bigint = scalarCodec(value.KindBigint,
		func(n int64) value.Bigint { return value.Bigint(n) },
		func(v value.Bigint) int64 { return int64(v) })
	Text = scalarCodec(value.KindText,
		func(s string) value.Text { return value.Text(s) },
		func(v value.Text) string { return string(v) })
	UUID = scalarCodec(value.KindUUID,
		func(id uuid.UUID) value.UUID { return value.UUID(id) },
		func(v value.UUID) uuid.UUID { return uuid.UUID(v) })
)
