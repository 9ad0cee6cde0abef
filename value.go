package itemx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Kind identifies the shape held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the schema-less, JSON-shaped representation of an item. Objects
// are map[string]any, arrays []any, numbers json.Number, so that integer
// precision survives a round trip.
//
// The zero Value is null.
type Value struct {
	raw any
}

// Null is the null structured value.
var Null = Value{}

// ToValue converts x into a Value using its JSON encoding, so `json` struct
// tags and custom json.Marshaler implementations are honoured.
func ToValue(x any) (Value, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return Value{}, newConversionError(typeName(x), ToStructured, err)
	}
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, newConversionError(typeName(x), ToStructured, err)
	}
	return v, nil
}

// MustToValue is like ToValue but panics with a *ConversionError when x
// cannot be represented. Generated ToValue methods use it: a failed
// conversion is a programming error with no fallback encoding.
func MustToValue(x any) Value {
	v, err := ToValue(x)
	if err != nil {
		panic(err)
	}
	return v
}

// FromValue decodes v into a fresh T. It is the inverse of ToValue.
func FromValue[T any](v Value) (T, error) {
	var out T
	if err := Decode(v, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Decode decodes v into target, which must be a non-nil pointer.
func Decode(v Value, target any) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return newConversionError(typeName(target), FromStructured, fmt.Errorf("target must be a non-nil pointer"))
	}
	data, err := json.Marshal(v.raw)
	if err != nil {
		return newConversionError(typeName(target), FromStructured, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return newConversionError(typeName(target), FromStructured, err)
	}
	return nil
}

// Raw returns the underlying representation.
func (v Value) Raw() any {
	return v.raw
}

// Kind reports which shape v holds.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case json.Number, float64:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindNull
	}
}

// Field returns the member name of an object value.
func (v Value) Field(name string) (Value, bool) {
	obj, ok := v.raw.(map[string]any)
	if !ok {
		return Value{}, false
	}
	member, ok := obj[name]
	if !ok {
		return Value{}, false
	}
	return Value{raw: member}, true
}

// Index returns element i of an array value.
func (v Value) Index(i int) (Value, bool) {
	arr, ok := v.raw.([]any)
	if !ok || i < 0 || i >= len(arr) {
		return Value{}, false
	}
	return Value{raw: arr[i]}, true
}

// Len returns the number of members of an object or elements of an array.
func (v Value) Len() int {
	switch t := v.raw.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

// Text returns the string held by a string value.
func (v Value) Text() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Equal reports whether both values hold the same structure.
func (v Value) Equal(other Value) bool {
	return reflect.DeepEqual(v.raw, other.raw)
}

// String returns the compact JSON encoding of v. Object keys are sorted.
func (v Value) String() string {
	data, err := json.Marshal(v.raw)
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(data)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	v.raw = raw
	return nil
}

func typeName(x any) string {
	if x == nil {
		return "<nil>"
	}
	return reflect.TypeOf(x).String()
}
