package ua

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	// ErrTypeMismatch is returned when a Go value cannot represent the
	// variant's type tag, or when tags differ where equality is required.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrValueOutOfRange is returned when a value does not fit its tag.
	ErrValueOutOfRange = errors.New("value out of range")
)

// Variant is a value tagged with its built-in type.
type Variant struct {
	Type  TypeID
	Value any
}

// Typed constructors. The Go type guarantees the value fits the tag.

func NewBoolean(v bool) Variant { return Variant{Type: TypeBoolean, Value: v} }
func NewSByte(v int8) Variant { return Variant{Type: TypeSByte, Value: v} }
func NewByte(v uint8) Variant { return Variant{Type: TypeByte, Value: v} }
func NewInt16(v int16) Variant { return Variant{Type: TypeInt16, Value: v} }
func NewUInt16(v uint16) Variant { return Variant{Type: TypeUInt16, Value: v} }
func NewInt32(v int32) Variant { return Variant{Type: TypeInt32, Value: v} }
func NewUInt32(v uint32) Variant { return Variant{Type: TypeUInt32, Value: v} }
func NewInt64(v int64) Variant { return Variant{Type: TypeInt64, Value: v} }
func NewUInt64(v uint64) Variant { return Variant{Type: TypeUInt64, Value: v} }
func NewFloat(v float32) Variant { return Variant{Type: TypeFloat, Value: v} }
func NewDouble(v float64) Variant { return Variant{Type: TypeDouble, Value: v} }
func NewString(v string) Variant { return Variant{Type: TypeString, Value: v} }
func NewDateTime(v time.Time) Variant { return Variant{Type: TypeDateTime, Value: v.UTC()} }
func NewNodeIDVariant(v NodeID) Variant { return Variant{Type: TypeNodeID, Value: v} }
func NewQualifiedNameVariant(v QualifiedName) Variant {
	return Variant{Type: TypeQualifiedName, Value: v}
}
func NewLocalizedTextVariant(v LocalizedText) Variant {
	return Variant{Type: TypeLocalizedText, Value: v}
}

// NewByteString copies v into a ByteString variant.
func NewByteString(v []byte) Variant {
	return Variant{Type: TypeByteString, Value: bytes.Clone(v)}
}

// IsNull reports whether v carries no value.
func (v Variant) IsNull() bool {
	return v.Type == TypeNull
}

// Normalize converts v.Value into the exact Go representation of v.Type:
// bool, int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32,
// float64, string, time.Time, []byte, NodeID, QualifiedName or
// LocalizedText. Integer tags accept any Go integer kind, integral floats
// and json.Number as long as the value fits.
func (v Variant) Normalize() (Variant, error) {
	out := Variant{Type: v.Type}

	switch v.Type {
	case TypeBoolean:
		b, ok := v.Value.(bool)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = b

	case TypeSByte, TypeByte, TypeInt16, TypeUInt16, TypeInt32, TypeUInt32, TypeInt64, TypeUInt64:
		n, err := toInteger(v.Value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", v.Type, err)
		}
		val, err := n.as(v.Type)
		if err != nil {
			return out, err
		}
		out.Value = val

	case TypeFloat:
		f, err := toFloat(v.Value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", v.Type, err)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return out, fmt.Errorf("%w: %v does not fit Float", ErrValueOutOfRange, f)
		}
		out.Value = float32(f)

	case TypeDouble:
		f, err := toFloat(v.Value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", v.Type, err)
		}
		out.Value = f

	case TypeString:
		s, ok := v.Value.(string)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = s

	case TypeDateTime:
		t, ok := v.Value.(time.Time)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = t.UTC()

	case TypeByteString:
		b, ok := v.Value.([]byte)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = bytes.Clone(b)

	case TypeNodeID:
		id, ok := v.Value.(NodeID)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = id

	case TypeQualifiedName:
		q, ok := v.Value.(QualifiedName)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = q

	case TypeLocalizedText:
		t, ok := v.Value.(LocalizedText)
		if !ok {
			return out, mismatch(v)
		}
		out.Value = t

	default:
		return out, fmt.Errorf("%w: unsupported type %s", ErrTypeMismatch, v.Type)
	}

	return out, nil
}

// Clone returns a copy of v that shares no mutable memory with it.
func (v Variant) Clone() Variant {
	if b, ok := v.Value.([]byte); ok {
		return Variant{Type: v.Type, Value: bytes.Clone(b)}
	}
	return v
}

// Equal reports whether v and o have the same tag and value.
func (v Variant) Equal(o Variant) bool {
	if v.Type != o.Type {
		return false
	}
	switch a := v.Value.(type) {
	case []byte:
		b, ok := o.Value.([]byte)
		return ok && bytes.Equal(a, b)
	case time.Time:
		b, ok := o.Value.(time.Time)
		return ok && a.Equal(b)
	default:
		return v.Value == o.Value
	}
}

func (v Variant) String() string {
	switch val := v.Value.(type) {
	case []byte:
		return fmt.Sprintf("%s(%x)", v.Type, val)
	case time.Time:
		return fmt.Sprintf("%s(%s)", v.Type, val.Format(time.RFC3339Nano))
	default:
		return fmt.Sprintf("%s(%v)", v.Type, val)
	}
}

func mismatch(v Variant) error {
	return fmt.Errorf("%w: %T cannot hold %s", ErrTypeMismatch, v.Value, v.Type)
}

// integer is a sign-magnitude integer wide enough for Int64 and UInt64.
type integer struct {
	neg bool
	abs uint64
}

func fromInt64(i int64) integer {
	if i < 0 {
		return integer{neg: true, abs: uint64(-(i + 1)) + 1}
	}
	return integer{abs: uint64(i)}
}

func fromFloat(f float64) (integer, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return integer{}, fmt.Errorf("%w: %v is not an integer", ErrValueOutOfRange, f)
	}
	if f < 0 {
		if f < math.MinInt64 {
			return integer{}, fmt.Errorf("%w: %v", ErrValueOutOfRange, f)
		}
		return fromInt64(int64(f)), nil
	}
	if f >= 1<<64 {
		return integer{}, fmt.Errorf("%w: %v", ErrValueOutOfRange, f)
	}
	return integer{abs: uint64(f)}, nil
}

func toInteger(x any) (integer, error) {
	switch n := x.(type) {
	case int:
		return fromInt64(int64(n)), nil
	case int8:
		return fromInt64(int64(n)), nil
	case int16:
		return fromInt64(int64(n)), nil
	case int32:
		return fromInt64(int64(n)), nil
	case int64:
		return fromInt64(n), nil
	case uint:
		return integer{abs: uint64(n)}, nil
	case uint8:
		return integer{abs: uint64(n)}, nil
	case uint16:
		return integer{abs: uint64(n)}, nil
	case uint32:
		return integer{abs: uint64(n)}, nil
	case uint64:
		return integer{abs: n}, nil
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fromInt64(i), nil
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return integer{abs: u}, nil
		}
		f, err := n.Float64()
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return integer{}, fmt.Errorf("%w: %s", ErrValueOutOfRange, n)
			}
			return integer{}, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, n)
		}
		return fromFloat(f)
	default:
		return integer{}, fmt.Errorf("%w: %T is not numeric", ErrTypeMismatch, x)
	}
}

func toFloat(x any) (float64, error) {
	switch n := x.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, fmt.Errorf("%w: %s", ErrValueOutOfRange, n)
			}
			return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, n)
		}
		return f, nil
	}
	i, err := toInteger(x)
	if err != nil {
		return 0, err
	}
	if i.neg {
		return float64(i.int64()), nil
	}
	return float64(i.abs), nil
}

func (n integer) int64() int64 {
	if n.neg {
		return -int64(n.abs-1) - 1
	}
	return int64(n.abs)
}

// fits reports whether min <= n <= max.
func (n integer) fits(min int64, max uint64) bool {
	if n.neg {
		return min < 0 && n.abs <= uint64(-(min+1))+1
	}
	return n.abs <= max
}

type intRange struct {
	min int64
	max uint64
}

var intRanges = map[TypeID]intRange{
	TypeSByte:  {math.MinInt8, math.MaxInt8},
	TypeByte:   {0, math.MaxUint8},
	TypeInt16:  {math.MinInt16, math.MaxInt16},
	TypeUInt16: {0, math.MaxUint16},
	TypeInt32:  {math.MinInt32, math.MaxInt32},
	TypeUInt32: {0, math.MaxUint32},
	TypeInt64:  {math.MinInt64, math.MaxInt64},
	TypeUInt64: {0, math.MaxUint64},
}

func (n integer) as(t TypeID) (any, error) {
	r := intRanges[t]
	if !n.fits(r.min, r.max) {
		sign := ""
		if n.neg {
			sign = "-"
		}
		return nil, fmt.Errorf("%w: %s%d does not fit %s", ErrValueOutOfRange, sign, n.abs, t)
	}
	switch t {
	case TypeSByte:
		return int8(n.int64()), nil
	case TypeByte:
		return uint8(n.abs), nil
	case TypeInt16:
		return int16(n.int64()), nil
	case TypeUInt16:
		return uint16(n.abs), nil
	case TypeInt32:
		return int32(n.int64()), nil
	case TypeUInt32:
		return uint32(n.abs), nil
	case TypeInt64:
		return n.int64(), nil
	default:
		return n.abs, nil
	}
}
