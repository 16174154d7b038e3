package devjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the types a device document can hold.
// Only Null, Str, Int, Float, Bool, Array, and Object implement it.
//
// Unlike a strict interchange IR, floats and nulls are first-class here:
// capture documents carry latitude/longitude floats and occasionally null
// placeholders, and both must round-trip.
type Value interface {
	devValue() // Sealed - only these types implement it
}

// Null represents a JSON null in a document.
type Null struct{}

func (Null) devValue() {}

// Str represents a string field.
type Str string

func (Str) devValue() {}

// Int represents an integer field. Always int64.
type Int int64

func (Int) devValue() {}

// Float represents a non-integral numeric field (signal averages, lat/lon).
type Float float64

func (Float) devValue() {}

// Bool represents a boolean field.
type Bool bool

func (Bool) devValue() {}

// Array represents an ordered list, e.g. a geopoint [lon, lat] pair.
type Array []Value

func (Array) devValue() {}

// Object represents a document or sub-document keyed by dotted field names.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) devValue() {}

// Decode parses a serialized device document.
//
// Numbers without a fractional or exponent part decode as Int, everything
// else as Float. Any malformed JSON returns an error; the caller decides
// whether that drops the row (see the orchestrator's unparseable-row
// accounting).
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	// Reject trailing garbage after the first value
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}

	return fromGo(raw)
}

// DecodeObject parses a serialized device document and requires the top
// level to be an object. Device rows always store an object; anything else
// is an unparseable record.
func DecodeObject(data []byte) (Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("document is %T, expected object", v)
	}
	return obj, nil
}

// fromGo recursively converts a decoded Go value into a Value.
func fromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case json.Number:
		s := string(val)
		if !strings.ContainsAny(s, ".eE") {
			if n, err := val.Int64(); err == nil {
				return Int(n), nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Float(f), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			dv, err := fromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = dv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			dv, err := fromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = dv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// Int64 returns the named field as an int64.
//
// Accepts Int directly and Float when the value is integral. Absent or
// mistyped fields return ok=false - never an error - so merge rules can
// treat malformed fields as absent.
func (o Object) Int64(key string) (int64, bool) {
	switch v := o[key].(type) {
	case Int:
		return int64(v), true
	case Float:
		if float64(int64(v)) == float64(v) {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Float64 returns the named field as a float64, accepting Int or Float.
func (o Object) Float64(key string) (float64, bool) {
	switch v := o[key].(type) {
	case Int:
		return float64(v), true
	case Float:
		return float64(v), true
	default:
		return 0, false
	}
}

// Str returns the named field as a string.
func (o Object) Str(key string) (string, bool) {
	v, ok := o[key].(Str)
	if !ok {
		return "", false
	}
	return string(v), true
}

// Obj returns the named field as a sub-object.
func (o Object) Obj(key string) (Object, bool) {
	v, ok := o[key].(Object)
	if !ok {
		return nil, false
	}
	return v, true
}

// Arr returns the named field as an array.
func (o Object) Arr(key string) (Array, bool) {
	v, ok := o[key].(Array)
	if !ok {
		return nil, false
	}
	return v, true
}

// Clone deep-copies the object. The merge policy clones its left input so
// callers never observe partially merged state.
func (o Object) Clone() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies any Value. Scalars are immutable and returned as-is.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return v
	}
}

// SortedKeys returns keys in canonical order (UTF-16 code units, per RFC
// 8785). Kismet field names are ASCII, where this matches byte order, but
// free-form fields can carry arbitrary Unicode.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units as RFC 8785
// requires. Go's native string comparison is UTF-8 and orders supplementary
// characters differently.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// Equal reports deep equality of two Values. Int and Float compare as
// distinct types even when numerically equal, matching serialization.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, present := bv[k]
			if !present || !Equal(v, bval) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
