package types

import (
	"fmt"
	"math"
	"strconv"
)

// Ids of built-in scalar types. Registered partial state types must use
// ids at or above CustomTypeIDStart.
const (
	UndefinedID = 0
	BooleanID   = 3
	StringID    = 4
	DoubleID    = 6
	IntegerID   = 9
	LongID      = 10
)

// A DataType describes the values of one column or expression, and knows how to
// convert, compare and stream them.
type DataType interface {
	ID() int                                             // ID returns the stable identifier of this DataType
	Name() string                                        // Name returns the name of this DataType
	FixedSize() int                                      // FixedSize returns the resident size of a value in bytes, or 0 for variable-width types
	Value(v interface{}) (interface{}, error)            // Value converts an arbitrary value to this DataType's value representation
	Compare(a, b interface{}) int                        // Compare orders two values of this DataType. nil sorts before any non-nil value
	WriteValueTo(out *StreamOutput, v interface{}) error // WriteValueTo serializes a value of this DataType
	ReadValueFrom(in *StreamInput) (interface{}, error)  // ReadValueFrom deserializes a value of this DataType
}

// Built-in scalar types
var (
	Undefined DataType = undefinedType{}
	Boolean   DataType = booleanType{}
	String    DataType = stringType{}
	Integer   DataType = integerType{}
	Long      DataType = longType{}
	Double    DataType = doubleType{}
)

// BuiltIns returns all built-in scalar types
func BuiltIns() []DataType {
	return []DataType{Undefined, Boolean, String, Integer, Long, Double}
}

// IsNumeric returns true iff t is a built-in numeric type
func IsNumeric(t DataType) bool {
	switch t.ID() {
	case IntegerID, LongID, DoubleID:
		return true
	}
	return false
}

// CompareNils orders a and b if at least one of them is nil. The second return
// value is false when both are non-nil and the caller has to compare them.
func CompareNils(a, b interface{}) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	return 0, false
}

type undefinedType struct{}

func (undefinedType) ID() int        { return UndefinedID }
func (undefinedType) Name() string   { return "undefined" }
func (undefinedType) FixedSize() int { return 0 }

func (undefinedType) Value(v interface{}) (interface{}, error) {
	return nil, nil
}

func (undefinedType) Compare(a, b interface{}) int {
	return 0
}

func (undefinedType) WriteValueTo(out *StreamOutput, v interface{}) error {
	return nil
}

func (undefinedType) ReadValueFrom(in *StreamInput) (interface{}, error) {
	return nil, nil
}

type booleanType struct{}

func (booleanType) ID() int        { return BooleanID }
func (booleanType) Name() string   { return "boolean" }
func (booleanType) FixedSize() int { return 1 }

func (booleanType) Value(v interface{}) (interface{}, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return nil, fmt.Errorf("Cannot convert %q to boolean: %w", b, err)
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("Cannot convert %#v to boolean", v)
}

func (booleanType) Compare(a, b interface{}) int {
	if c, ok := CompareNils(a, b); ok {
		return c
	}
	ab, bb := a.(bool), b.(bool)
	switch {
	case ab == bb:
		return 0
	case !ab:
		return -1
	}
	return 1
}

func (booleanType) WriteValueTo(out *StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v != nil {
		out.WriteBool(v.(bool))
	}
	return nil
}

func (booleanType) ReadValueFrom(in *StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	return in.ReadBool()
}

type stringType struct{}

func (stringType) ID() int        { return StringID }
func (stringType) Name() string   { return "string" }
func (stringType) FixedSize() int { return 0 }

func (stringType) Value(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case bool:
		return strconv.FormatBool(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case int32:
		return strconv.FormatInt(int64(s), 10), nil
	case int:
		return strconv.Itoa(s), nil
	}
	return nil, fmt.Errorf("Cannot convert %#v to string", v)
}

func (stringType) Compare(a, b interface{}) int {
	if c, ok := CompareNils(a, b); ok {
		return c
	}
	as, bs := a.(string), b.(string)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func (stringType) WriteValueTo(out *StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v != nil {
		out.WriteString(v.(string))
	}
	return nil
}

func (stringType) ReadValueFrom(in *StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	return in.ReadString()
}

type integerType struct{}

func (integerType) ID() int        { return IntegerID }
func (integerType) Name() string   { return "integer" }
func (integerType) FixedSize() int { return 4 }

func (integerType) Value(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("Value %d is out of range for integer", n)
	}
	return int32(n), nil
}

func (integerType) Compare(a, b interface{}) int {
	if c, ok := CompareNils(a, b); ok {
		return c
	}
	return compareInt64(int64(a.(int32)), int64(b.(int32)))
}

func (integerType) WriteValueTo(out *StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v != nil {
		out.WriteZLong(int64(v.(int32)))
	}
	return nil
}

func (integerType) ReadValueFrom(in *StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	n, err := in.ReadZLong()
	if err != nil {
		return nil, err
	}
	return int32(n), nil
}

type longType struct{}

func (longType) ID() int        { return LongID }
func (longType) Name() string   { return "long" }
func (longType) FixedSize() int { return 8 }

func (longType) Value(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	return toInt64(v)
}

func (longType) Compare(a, b interface{}) int {
	if c, ok := CompareNils(a, b); ok {
		return c
	}
	return compareInt64(a.(int64), b.(int64))
}

func (longType) WriteValueTo(out *StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v != nil {
		out.WriteZLong(v.(int64))
	}
	return nil
}

func (longType) ReadValueFrom(in *StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	return in.ReadZLong()
}

type doubleType struct{}

func (doubleType) ID() int        { return DoubleID }
func (doubleType) Name() string   { return "double" }
func (doubleType) FixedSize() int { return 8 }

func (doubleType) Value(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	return ToFloat64(v)
}

func (doubleType) Compare(a, b interface{}) int {
	if c, ok := CompareNils(a, b); ok {
		return c
	}
	af, bf := a.(float64), b.(float64)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

func (doubleType) WriteValueTo(out *StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v != nil {
		out.WriteDouble(v.(float64))
	}
	return nil
}

func (doubleType) ReadValueFrom(in *StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	return in.ReadDouble()
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("Value %v is not an integral number", n)
		}
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("Cannot convert %q to a number: %w", n, err)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("Cannot convert %#v to a number", v)
}

// ToFloat64 converts any numeric value to a float64
func ToFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("Cannot convert %q to a number: %w", n, err)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("Cannot convert %#v to a number", v)
}
