// Package expr compiles bound Symbols into Expressions which are evaluated once per row.
package expr

import (
	"fmt"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/functions"
)

// Document gives access to the columns of the source document a row is produced from
type Document interface {
	Lookup(ref *sifql.Reference) (interface{}, error)
}

// Expression is a compiled Symbol
type Expression interface {
	Evaluate(doc Document, row sifql.Row) (interface{}, error)
}

// ExpressionFunc adapts a function to the Expression interface
type ExpressionFunc func(doc Document, row sifql.Row) (interface{}, error)

// Evaluate calls f
func (f ExpressionFunc) Evaluate(doc Document, row sifql.Row) (interface{}, error) {
	return f(doc, row)
}

// Compiler turns Symbols into Expressions, resolving scalar functions once at compile time
type Compiler struct {
	fns *functions.Registry
}

// NewCompiler is a factory for Compilers
func NewCompiler(fns *functions.Registry) *Compiler {
	return &Compiler{fns: fns}
}

// Compile compiles s. Aggregate calls cannot be evaluated per row and are rejected.
func (c *Compiler) Compile(s sifql.Symbol) (Expression, error) {
	switch sym := s.(type) {
	case *sifql.Literal:
		v := sym.Value
		return ExpressionFunc(func(Document, sifql.Row) (interface{}, error) {
			return v, nil
		}), nil
	case *sifql.InputColumn:
		idx := sym.Index
		return ExpressionFunc(func(_ Document, row sifql.Row) (interface{}, error) {
			if row == nil || idx >= row.Size() {
				return nil, fmt.Errorf("Input column %d is out of range", idx)
			}
			return row.Get(idx), nil
		}), nil
	case *sifql.Reference:
		return ExpressionFunc(func(doc Document, _ sifql.Row) (interface{}, error) {
			if doc == nil {
				return nil, fmt.Errorf("Cannot resolve %s without a source document", sym)
			}
			v, err := doc.Lookup(sym)
			if err != nil {
				return nil, err
			}
			return sym.Type.Value(v)
		}), nil
	case *sifql.Function:
		return c.compileFunction(sym)
	}
	return nil, fmt.Errorf("Cannot compile symbol %v", s)
}

// CompileAll compiles every Symbol in symbols
func (c *Compiler) CompileAll(symbols []sifql.Symbol) ([]Expression, error) {
	result := make([]Expression, len(symbols))
	for i, s := range symbols {
		e, err := c.Compile(s)
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (c *Compiler) compileFunction(fn *sifql.Function) (Expression, error) {
	if fn.Info.Kind == sifql.AggregateFunctionKind {
		return nil, fmt.Errorf("Aggregate %s cannot be evaluated per row", fn)
	}
	impl, err := c.fns.GetScalar(fn.Info.Ident)
	if err != nil {
		return nil, err
	}
	args, err := c.CompileAll(fn.Arguments)
	if err != nil {
		return nil, err
	}
	return ExpressionFunc(func(doc Document, row sifql.Row) (interface{}, error) {
		inputs := make([]sifql.Input, len(args))
		for i, a := range args {
			v, err := a.Evaluate(doc, row)
			if err != nil {
				return nil, err
			}
			inputs[i] = sifql.Value{V: v}
		}
		return impl.Evaluate(inputs...)
	}), nil
}

// Matches returns true iff v is the boolean true. Null and false conditions do not match.
func Matches(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// References returns every Reference within symbols, in order of appearance
func References(symbols ...sifql.Symbol) []*sifql.Reference {
	var refs []*sifql.Reference
	for _, s := range symbols {
		switch sym := s.(type) {
		case *sifql.Reference:
			refs = append(refs, sym)
		case *sifql.Function:
			refs = append(refs, References(sym.Arguments...)...)
		}
	}
	return refs
}
