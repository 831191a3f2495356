package scalar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Value is a sealed interface over the scalar types a row cell or bound
// variable may hold. Only the types in this package implement it.
type Value interface {
	scalar()
}

// Null is the SQL NULL / JSON null value.
type Null struct{}

func (Null) scalar() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text value.
type String string

func (String) scalar() {}

// Int is a 64-bit integer value.
type Int int64

func (Int) scalar() {}

// Float is a 64-bit floating point value.
// NaN and infinities cannot be represented in JSON and are rejected on encode.
type Float float64

func (Float) scalar() {}

// Bool is a boolean value.
type Bool bool

func (Bool) scalar() {}

// Bytes is a binary value. Encodes to JSON as standard base64 text.
type Bytes []byte

func (Bytes) scalar() {}

// TypeName returns a short lowercase name for the value's type.
// Used in error messages and log attributes.
func TypeName(v Value) string {
	switch v.(type) {
	case Null, nil:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsNull reports whether v is Null (or a nil interface).
func IsNull(v Value) bool {
	switch v.(type) {
	case Null, nil:
		return true
	}
	return false
}

// Decode parses a single JSON scalar into a Value.
//
// Integral numbers that fit in int64 decode as Int, every other number as
// Float. Arrays and objects are rejected: a bound variable must be a scalar.
func Decode(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return nil, fmt.Errorf("invalid JSON literal %q", string(data))
		}
		return Null{}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case '[', '{':
		return nil, fmt.Errorf("expected a scalar, got %s", describeComposite(data[0]))
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return nil, err
		}
		return numberValue(n)
	}
}

func describeComposite(b byte) string {
	if b == '[' {
		return "array"
	}
	return "object"
}

// numberValue converts a json.Number to Int when it is integral and fits,
// otherwise to Float.
func numberValue(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	return Float(f), nil
}

// FromJSON converts a value produced by a json.Decoder with UseNumber into a
// Value. Composite values (arrays, objects) report ok=false.
func FromJSON(v any) (Value, bool) {
	switch val := v.(type) {
	case nil:
		return Null{}, true
	case string:
		return String(val), true
	case bool:
		return Bool(val), true
	case json.Number:
		sv, err := numberValue(val)
		if err != nil {
			return nil, false
		}
		return sv, true
	case float64:
		return Float(val), true
	case int64:
		return Int(val), true
	case int:
		return Int(val), true
	default:
		return nil, false
	}
}

// FromDriver converts a value scanned from database/sql into a Value.
//
// The SQLite driver yields int64, float64, string, []byte, bool (for columns
// declared BOOLEAN), time.Time (for columns declared DATE/DATETIME/TIMESTAMP)
// or nil. Times are rendered as RFC 3339 text.
func FromDriver(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case int64:
		return Int(val)
	case float64:
		return Float(val)
	case string:
		return String(val)
	case []byte:
		// database/sql reuses driver buffers; copy before retaining.
		return Bytes(bytes.Clone(val))
	case bool:
		return Bool(val)
	case time.Time:
		return String(val.UTC().Format(time.RFC3339Nano))
	default:
		return String(fmt.Sprint(val))
	}
}

// Param converts a Value into an argument suitable for database/sql.
func Param(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Bytes:
		return []byte(val)
	default:
		return nil
	}
}

// AsFloat returns the numeric value of v for Int and Float values.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Values is an ordered list of bound variables.
type Values []Value

// UnmarshalJSON decodes a JSON array of scalars.
func (vs *Values) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Values, len(raw))
	for i, r := range raw {
		v, err := Decode(r)
		if err != nil {
			return fmt.Errorf("variable %d: %w", i, err)
		}
		out[i] = v
	}
	*vs = out
	return nil
}

// Params converts all values into database/sql arguments, in order.
func (vs Values) Params() []any {
	params := make([]any, len(vs))
	for i, v := range vs {
		params[i] = Param(v)
	}
	return params
}
