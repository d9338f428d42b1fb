package quality

// value.go defines Value, the tagged variant that carries one dynamically typed field.
//
// Inputs arrive as loosely typed scalars (JSON numbers, strings, booleans, nulls,
// CSV cells). Every check in the engine works on a Value's string form or on an
// explicit parse of it, never on host-language coercion, so the parse order used
// by the profiler stays the one documented in coerce.go.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind is the tag of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed field value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string // text, or the literal form of a number when known
	t    time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, n: f} }

// Text wraps a string. Blank strings stay text; IsBlank reports them.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Time wraps a timestamp.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// numberLiteral keeps the caller's spelling of a number (e.g. "1.50").
func numberLiteral(f float64, lit string) Value {
	return Value{kind: KindNumber, n: f, s: lit}
}

// FromAny converts a Go scalar into a Value.
// Unknown types are stored as text using their printed form.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return Text(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Text(x.String())
		}
		return numberLiteral(f, x.String())
	case time.Time:
		return Time(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Time(*x)
	case float32, float64:
		return Number(cast.ToFloat64(x))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return numberLiteral(cast.ToFloat64(x), cast.ToString(x))
	}
	if s, err := cast.ToStringE(v); err == nil {
		return Text(s)
	}
	return Text(fmt.Sprint(v))
}

// Kind returns the tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsBlank reports whether the value is null or a whitespace-only string.
func (v Value) IsBlank() bool {
	return v.kind == KindNull || (v.kind == KindText && strings.TrimSpace(v.s) == "")
}

// String returns the value's string form. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.s != "" {
			return v.s
		}
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindText:
		return v.s
	case KindTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// Interface returns the value as a plain Go scalar (nil, bool, float64, string, time.Time).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindText:
		return v.s
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// groupKey identifies equal values for distinct counts and frequency tables.
// Values of different kinds never compare equal, so the number 1 and the text "1"
// are distinct.
func (v Value) groupKey() string {
	return strconv.Itoa(int(v.kind)) + ":" + v.String()
}

// MarshalJSON encodes the value as its natural JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && v.s != "" {
		return []byte(v.s), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON scalar. Numbers keep their literal spelling.
// Arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case map[string]any, []any:
		return fmt.Errorf("field value must be a scalar, got %s", string(data))
	}
	*v = FromAny(raw)
	return nil
}

// RowFromMap converts a plain map into a Row.
func RowFromMap(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = FromAny(v)
	}
	return row
}
