package ua

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// VariantFrom builds a normalized Variant of type t from a value decoded
// from JSON (with UseNumber) or YAML. Strings are accepted for DateTime
// (RFC 3339), ByteString (base64), NodeId, QualifiedName and
// LocalizedText; maps with "locale"/"text" keys are accepted for
// LocalizedText. Float and Double accept only the strings "NaN",
// "Infinity" and "-Infinity"; other numeric tags never accept strings.
func VariantFrom(t TypeID, raw any) (Variant, error) {
	if !t.Valid() {
		return Variant{}, fmt.Errorf("%w: unsupported type %s", ErrTypeMismatch, t)
	}

	switch t {
	case TypeFloat, TypeDouble:
		if s, ok := raw.(string); ok {
			f, err := parseNonFinite(s)
			if err != nil {
				return Variant{}, err
			}
			raw = f
		}
	case TypeDateTime:
		if s, ok := raw.(string); ok {
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return Variant{}, fmt.Errorf("%w: bad DateTime %q: %v", ErrTypeMismatch, s, err)
			}
			raw = ts
		}
	case TypeByteString:
		if s, ok := raw.(string); ok {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return Variant{}, fmt.Errorf("%w: bad ByteString: %v", ErrTypeMismatch, err)
			}
			raw = b
		}
	case TypeNodeID:
		if s, ok := raw.(string); ok {
			id, err := ParseNodeID(s)
			if err != nil {
				return Variant{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
			}
			raw = id
		}
	case TypeQualifiedName:
		if s, ok := raw.(string); ok {
			raw = ParseQualifiedName(s)
		}
	case TypeLocalizedText:
		switch v := raw.(type) {
		case string:
			raw = LocalizedText{Text: v}
		case map[string]any:
			lt := LocalizedText{}
			lt.Locale, _ = v["locale"].(string)
			lt.Text, _ = v["text"].(string)
			raw = lt
		}
	}

	return Variant{Type: t, Value: raw}.Normalize()
}

type variantJSON struct {
	Type  TypeID          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Spellings of non-finite Float and Double values on the wire. JSON has
// no number literal for them.
const (
	jsonNaN    = "NaN"
	jsonInf    = "Infinity"
	jsonNegInf = "-Infinity"
)

func parseNonFinite(s string) (float64, error) {
	switch s {
	case jsonNaN:
		return math.NaN(), nil
	case jsonInf:
		return math.Inf(1), nil
	case jsonNegInf:
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, s)
}

// nonFinite returns the wire spelling of f, or ok false for finite values.
func nonFinite(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return jsonNaN, true
	case math.IsInf(f, 1):
		return jsonInf, true
	case math.IsInf(f, -1):
		return jsonNegInf, true
	}
	return "", false
}

// MarshalJSON encodes v as {"type":"Int32","value":45}. NaN and infinite
// floats are written as strings.
func (v Variant) MarshalJSON() ([]byte, error) {
	var val any
	switch x := v.Value.(type) {
	case time.Time:
		val = x.UTC().Format(time.RFC3339Nano)
	case float32:
		val = x
		if s, ok := nonFinite(float64(x)); ok {
			val = s
		}
	case float64:
		val = x
		if s, ok := nonFinite(x); ok {
			val = s
		}
	default:
		val = x
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	return json.Marshal(variantJSON{Type: v.Type, Value: raw})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var wire variantJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(wire.Value))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("variant value: %w", err)
	}

	out, err := VariantFrom(wire.Type, raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// FormatValue renders the value of v as plain text, the inverse of
// ParseValue.
func FormatValue(v Variant) string {
	switch x := v.Value.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// ParseValue parses text into a Variant of type t. It is used by command
// line tools where values arrive as strings.
func ParseValue(t TypeID, s string) (Variant, error) {
	switch t {
	case TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %q is not a Boolean", ErrTypeMismatch, s)
		}
		return NewBoolean(b), nil
	case TypeSByte, TypeByte, TypeInt16, TypeUInt16, TypeInt32, TypeUInt32, TypeInt64, TypeUInt64,
		TypeFloat, TypeDouble:
		return VariantFrom(t, json.Number(s))
	case TypeString:
		return NewString(s), nil
	default:
		return VariantFrom(t, s)
	}
}
