package sifql

import (
	"fmt"
	"strings"

	"github.com/go-sif/sifql/types"
)

// SymbolType identifies the kind of a Symbol
type SymbolType int

const (
	// LiteralSymbol is a constant value
	LiteralSymbol SymbolType = iota
	// ReferenceSymbol is a column of a data source
	ReferenceSymbol
	// FunctionSymbol is a function call
	FunctionSymbol
	// InputColumnSymbol is a position within an incoming Row
	InputColumnSymbol
)

// Symbol is a node of a bound expression tree
type Symbol interface {
	SymbolType() SymbolType    // SymbolType returns the kind of this Symbol
	ValueType() types.DataType // ValueType returns the DataType this Symbol evaluates to
	String() string            // String returns a string representation of this Symbol
}

// IsValueSymbol returns true iff s is a constant
func IsValueSymbol(s Symbol) bool {
	return s.SymbolType() == LiteralSymbol
}

// Literal is a constant value of a known DataType
type Literal struct {
	Value interface{}
	Type  types.DataType
}

// NewLiteral creates a Literal, inferring its DataType from v.
// NewLiteral panics if v has no DataType; use LiteralOf for values which are not known in advance.
func NewLiteral(v interface{}) *Literal {
	l, err := LiteralOf(v)
	if err != nil {
		panic(err)
	}
	return l
}

// LiteralOf creates a Literal, inferring its DataType from v. Narrow integers are widened
// to Integer, wide ones to Long, and floats to Double.
func LiteralOf(v interface{}) (*Literal, error) {
	switch tv := v.(type) {
	case nil:
		return &Literal{Type: types.Undefined}, nil
	case bool:
		return &Literal{Value: tv, Type: types.Boolean}, nil
	case string:
		return &Literal{Value: tv, Type: types.String}, nil
	case int8:
		return &Literal{Value: int32(tv), Type: types.Integer}, nil
	case int16:
		return &Literal{Value: int32(tv), Type: types.Integer}, nil
	case uint8:
		return &Literal{Value: int32(tv), Type: types.Integer}, nil
	case uint16:
		return &Literal{Value: int32(tv), Type: types.Integer}, nil
	case int32:
		return &Literal{Value: tv, Type: types.Integer}, nil
	case uint32:
		return &Literal{Value: int64(tv), Type: types.Long}, nil
	case int:
		return &Literal{Value: int64(tv), Type: types.Long}, nil
	case int64:
		return &Literal{Value: tv, Type: types.Long}, nil
	case float32:
		return &Literal{Value: float64(tv), Type: types.Double}, nil
	case float64:
		return &Literal{Value: tv, Type: types.Double}, nil
	}
	return nil, fmt.Errorf("Cannot create a literal from %#v", v)
}

// SymbolType returns LiteralSymbol
func (l *Literal) SymbolType() SymbolType { return LiteralSymbol }

// ValueType returns the DataType of this Literal
func (l *Literal) ValueType() types.DataType { return l.Type }

// String returns a string representation of this Literal
func (l *Literal) String() string {
	if l.Value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", l.Value)
}

// ColumnIdent names a (possibly nested) column, e.g. details['age']
type ColumnIdent struct {
	Name string
	Path []string
}

// NewColumnIdent creates a ColumnIdent from a dotted path such as "details.age"
func NewColumnIdent(fqn string) ColumnIdent {
	parts := strings.Split(fqn, ".")
	return ColumnIdent{Name: parts[0], Path: parts[1:]}
}

// FQN returns the dotted name of this ColumnIdent
func (c ColumnIdent) FQN() string {
	if len(c.Path) == 0 {
		return c.Name
	}
	return c.Name + "." + strings.Join(c.Path, ".")
}

// Reference is a column of a data source
type Reference struct {
	Table       string
	Column      ColumnIdent
	Type        types.DataType
	Granularity RowGranularity
}

// NewReference creates a Reference to a document column
func NewReference(fqn string, t types.DataType) *Reference {
	return &Reference{Column: NewColumnIdent(fqn), Type: t, Granularity: DocGranularity}
}

// SymbolType returns ReferenceSymbol
func (r *Reference) SymbolType() SymbolType { return ReferenceSymbol }

// ValueType returns the DataType of the referenced column
func (r *Reference) ValueType() types.DataType { return r.Type }

// String returns a string representation of this Reference
func (r *Reference) String() string { return r.Column.FQN() }

// Function is a bound function call
type Function struct {
	Info      FunctionInfo
	Arguments []Symbol
}

// SymbolType returns FunctionSymbol
func (f *Function) SymbolType() SymbolType { return FunctionSymbol }

// ValueType returns the return type of the called function
func (f *Function) ValueType() types.DataType { return f.Info.ReturnType }

// String returns a string representation of this Function
func (f *Function) String() string {
	args := make([]string, len(f.Arguments))
	for i, a := range f.Arguments {
		args[i] = a.String()
	}
	return f.Info.Ident.Name + "(" + strings.Join(args, ", ") + ")"
}

// InputColumn is a position within an incoming Row
type InputColumn struct {
	Index int
	Type  types.DataType
}

// SymbolType returns InputColumnSymbol
func (c *InputColumn) SymbolType() SymbolType { return InputColumnSymbol }

// ValueType returns the DataType of the referenced position
func (c *InputColumn) ValueType() types.DataType { return c.Type }

// String returns a string representation of this InputColumn
func (c *InputColumn) String() string { return fmt.Sprintf("INPUT(%d)", c.Index) }
