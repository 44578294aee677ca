package accumulators

import (
	"fmt"
	"strconv"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/types"
)

// CountName is the name of the count aggregation
const CountName = "count"

// LongStateTypeID is the registered type id of LongState
const LongStateTypeID = types.CustomTypeIDStart

// LongState counts rows. It is a value type: Add and Merge return new states.
type LongState struct {
	Value int64
}

// Add returns a state incremented by n
func (s LongState) Add(n int64) LongState {
	return LongState{Value: s.Value + n}
}

// Merge returns the sum of two states
func (s LongState) Merge(o LongState) LongState {
	return LongState{Value: s.Value + o.Value}
}

// String returns a string representation of this LongState
func (s LongState) String() string {
	return strconv.FormatInt(s.Value, 10)
}

type longStateType struct{}

// LongStateType is the DataType of LongStates
var LongStateType types.DataType = longStateType{}

func (longStateType) ID() int        { return LongStateTypeID }
func (longStateType) Name() string   { return "long_state" }
func (longStateType) FixedSize() int { return types.Long.FixedSize() }

func (longStateType) Value(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case LongState:
		return s, nil
	}
	return nil, fmt.Errorf("Cannot convert %#v to long_state", v)
}

// Compare orders states by count. The empty (nil) state sorts before any populated state.
func (longStateType) Compare(a, b interface{}) int {
	if c, ok := types.CompareNils(a, b); ok {
		return c
	}
	av, bv := a.(LongState).Value, b.(LongState).Value
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

func (longStateType) WriteValueTo(out *types.StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v == nil {
		return nil
	}
	s, err := asLongState(v)
	if err != nil {
		return err
	}
	out.WriteVLong(s.Value)
	return nil
}

func (longStateType) ReadValueFrom(in *types.StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	v, err := in.ReadVLong()
	if err != nil {
		return nil, err
	}
	return LongState{Value: v}, nil
}

func asLongState(v interface{}) (LongState, error) {
	switch s := v.(type) {
	case nil:
		return LongState{}, nil
	case LongState:
		return s, nil
	}
	return LongState{}, fmt.Errorf("Incoming state is not a LongState: %#v", v)
}

// CountStarInfo describes count(*), the zero-argument variant of count
var CountStarInfo = sifql.FunctionInfo{
	Ident:      sifql.FunctionIdent{Name: CountName, ArgumentTypes: []types.DataType{}},
	ReturnType: types.Long,
	Kind:       sifql.AggregateFunctionKind,
}

// Count counts rows (count(*)) or the rows in which its argument is not null (count(col))
type Count struct {
	info    sifql.FunctionInfo
	hasArgs bool
}

func resolveCount(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
	switch len(argTypes) {
	case 0:
		return &Count{info: CountStarInfo}, nil
	case 1:
		return &Count{
			info: sifql.FunctionInfo{
				Ident:      sifql.FunctionIdent{Name: CountName, ArgumentTypes: argTypes},
				ReturnType: types.Long,
				Kind:       sifql.AggregateFunctionKind,
			},
			hasArgs: true,
		}, nil
	}
	return nil, functions.ResolutionError(CountName, argTypes)
}

// Info returns the descriptor of this variant
func (c *Count) Info() sifql.FunctionInfo {
	return c.info
}

// PartialType returns LongStateType
func (c *Count) PartialType() types.DataType {
	return LongStateType
}

// NewState charges mem for the fixed size of a LongState
func (c *Count) NewState(mem sifql.MemoryGovernor) (sifql.PartialState, error) {
	if err := mem.Charge(int64(LongStateType.FixedSize())); err != nil {
		return nil, err
	}
	return LongState{}, nil
}

// Iterate counts the row, unless this variant has an argument whose value is null
func (c *Count) Iterate(mem sifql.MemoryGovernor, state sifql.PartialState, args ...sifql.Input) (sifql.PartialState, error) {
	s, err := asLongState(state)
	if err != nil {
		return nil, err
	}
	if !c.hasArgs {
		return s.Add(1), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects an argument", c.info.Ident)
	}
	if args[0].Value() != nil {
		return s.Add(1), nil
	}
	return s, nil
}

// Reduce merges two LongStates
func (c *Count) Reduce(mem sifql.MemoryGovernor, a, b sifql.PartialState) (sifql.PartialState, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	as, err := asLongState(a)
	if err != nil {
		return nil, err
	}
	bs, err := asLongState(b)
	if err != nil {
		return nil, err
	}
	return as.Merge(bs), nil
}

// TerminatePartial returns the count as a long
func (c *Count) TerminatePartial(mem sifql.MemoryGovernor, state sifql.PartialState) (interface{}, error) {
	s, err := asLongState(state)
	if err != nil {
		return nil, err
	}
	return s.Value, nil
}

// NormalizeSymbol rewrites count(<constant>): a constant of undefined type can never be
// non-null, so the call becomes the literal 0; any other constant is never filtered, so
// the call becomes count(*). Calls on columns are left alone.
func (c *Count) NormalizeSymbol(fn *sifql.Function) sifql.Symbol {
	if len(fn.Arguments) != 1 || !sifql.IsValueSymbol(fn.Arguments[0]) {
		return fn
	}
	if fn.Arguments[0].ValueType().ID() == types.UndefinedID {
		return &sifql.Literal{Value: int64(0), Type: types.Long}
	}
	return &sifql.Function{Info: CountStarInfo, Arguments: []sifql.Symbol{}}
}

var _ sifql.AggregationFunction = (*Count)(nil)
