package functions

import (
	"fmt"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/types"
)

// Names of the built-in scalar functions
const (
	EqName     = "op_="
	LtName     = "op_<"
	GtName     = "op_>"
	AndName    = "op_and"
	OrName     = "op_or"
	NotName    = "op_not"
	IsNullName = "op_isnull"
)

type scalar struct {
	info sifql.FunctionInfo
	eval func(args []interface{}) (interface{}, error)
}

func newScalar(name string, argTypes []types.DataType, returnType types.DataType, eval func(args []interface{}) (interface{}, error)) *scalar {
	return &scalar{
		info: sifql.FunctionInfo{
			Ident:      sifql.FunctionIdent{Name: name, ArgumentTypes: argTypes},
			ReturnType: returnType,
			Kind:       sifql.ScalarFunctionKind,
		},
		eval: eval,
	}
}

// Info returns the descriptor of this variant
func (s *scalar) Info() sifql.FunctionInfo {
	return s.info
}

// NormalizeSymbol folds calls whose arguments are all constants
func (s *scalar) NormalizeSymbol(fn *sifql.Function) sifql.Symbol {
	args := make([]interface{}, len(fn.Arguments))
	for i, a := range fn.Arguments {
		lit, ok := a.(*sifql.Literal)
		if !ok {
			return fn
		}
		args[i] = lit.Value
	}
	v, err := s.eval(args)
	if err != nil {
		return fn
	}
	return &sifql.Literal{Value: v, Type: s.info.ReturnType}
}

// Evaluate computes the function result
func (s *scalar) Evaluate(args ...sifql.Input) (interface{}, error) {
	values := make([]interface{}, len(args))
	for i, a := range args {
		values[i] = a.Value()
	}
	return s.eval(values)
}

// comparisonType returns the type two comparison operands are compared as
func comparisonType(argTypes []types.DataType) (types.DataType, bool) {
	if len(argTypes) != 2 {
		return nil, false
	}
	a, b := argTypes[0], argTypes[1]
	switch {
	case a.ID() == b.ID():
		return a, true
	case a.ID() == types.UndefinedID:
		return b, true
	case b.ID() == types.UndefinedID:
		return a, true
	case types.IsNumeric(a) && types.IsNumeric(b):
		return types.Double, true
	}
	return nil, false
}

func comparisonResolver(name string, matches func(cmp int) bool) Resolver {
	return ResolverFunc(func(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
		t, ok := comparisonType(argTypes)
		if !ok {
			return nil, ResolutionError(name, argTypes)
		}
		return newScalar(name, argTypes, types.Boolean, func(args []interface{}) (interface{}, error) {
			if args[0] == nil || args[1] == nil {
				return nil, nil
			}
			a, err := t.Value(args[0])
			if err != nil {
				return nil, err
			}
			b, err := t.Value(args[1])
			if err != nil {
				return nil, err
			}
			return matches(t.Compare(a, b)), nil
		}), nil
	})
}

func booleanArgs(argTypes []types.DataType, n int) bool {
	if len(argTypes) != n {
		return false
	}
	for _, t := range argTypes {
		if t.ID() != types.BooleanID && t.ID() != types.UndefinedID {
			return false
		}
	}
	return true
}

func asBool(v interface{}) (bool, bool, error) {
	if v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, fmt.Errorf("Expected a boolean, got %#v", v)
	}
	return b, true, nil
}

// RegisterScalars registers the built-in comparison and logical operators
func RegisterScalars(r *Registry) error {
	resolvers := map[string]Resolver{
		EqName: comparisonResolver(EqName, func(c int) bool { return c == 0 }),
		LtName: comparisonResolver(LtName, func(c int) bool { return c < 0 }),
		GtName: comparisonResolver(GtName, func(c int) bool { return c > 0 }),
		AndName: ResolverFunc(func(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
			if !booleanArgs(argTypes, 2) {
				return nil, ResolutionError(AndName, argTypes)
			}
			return newScalar(AndName, argTypes, types.Boolean, func(args []interface{}) (interface{}, error) {
				sawNull := false
				for _, a := range args {
					b, present, err := asBool(a)
					if err != nil {
						return nil, err
					}
					if !present {
						sawNull = true
					} else if !b {
						return false, nil
					}
				}
				if sawNull {
					return nil, nil
				}
				return true, nil
			}), nil
		}),
		OrName: ResolverFunc(func(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
			if !booleanArgs(argTypes, 2) {
				return nil, ResolutionError(OrName, argTypes)
			}
			return newScalar(OrName, argTypes, types.Boolean, func(args []interface{}) (interface{}, error) {
				sawNull := false
				for _, a := range args {
					b, present, err := asBool(a)
					if err != nil {
						return nil, err
					}
					if !present {
						sawNull = true
					} else if b {
						return true, nil
					}
				}
				if sawNull {
					return nil, nil
				}
				return false, nil
			}), nil
		}),
		NotName: ResolverFunc(func(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
			if !booleanArgs(argTypes, 1) {
				return nil, ResolutionError(NotName, argTypes)
			}
			return newScalar(NotName, argTypes, types.Boolean, func(args []interface{}) (interface{}, error) {
				b, present, err := asBool(args[0])
				if err != nil || !present {
					return nil, err
				}
				return !b, nil
			}), nil
		}),
		IsNullName: ResolverFunc(func(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
			if len(argTypes) != 1 {
				return nil, ResolutionError(IsNullName, argTypes)
			}
			return newScalar(IsNullName, argTypes, types.Boolean, func(args []interface{}) (interface{}, error) {
				return args[0] == nil, nil
			}), nil
		}),
	}
	for _, name := range []string{EqName, LtName, GtName, AndName, OrName, NotName, IsNullName} {
		if err := r.Register(name, resolvers[name]); err != nil {
			return err
		}
	}
	return nil
}
