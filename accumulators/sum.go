package accumulators

import (
	"fmt"
	"math"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/types"
)

// SumName is the name of the sum aggregation
const SumName = "sum"

// SumStateTypeID is the registered type id of SumState
const SumStateTypeID = types.CustomTypeIDStart + 1

// SumState adds up numeric values with compensated (Neumaier) summation, so that the
// result does not depend on the order in which values and states are combined beyond
// the rounding of the final double. A state which has not seen a non-null value
// terminates to null.
type SumState struct {
	Value        float64
	Compensation float64
	Populated    bool
}

// Add returns a state with v added
func (s SumState) Add(v float64) SumState {
	sum, c := twoSum(s.Value, v)
	return SumState{Value: sum, Compensation: s.Compensation + c, Populated: true}
}

// Merge returns the combination of two states
func (s SumState) Merge(o SumState) SumState {
	sum, c := twoSum(s.Value, o.Value)
	return SumState{
		Value:        sum,
		Compensation: s.Compensation + o.Compensation + c,
		Populated:    s.Populated || o.Populated,
	}
}

// Result returns the compensated sum
func (s SumState) Result() float64 {
	return s.Value + s.Compensation
}

// twoSum returns a+b and the rounding error lost by that addition
func twoSum(a, b float64) (float64, float64) {
	sum := a + b
	if math.Abs(a) >= math.Abs(b) {
		return sum, (a - sum) + b
	}
	return sum, (b - sum) + a
}

type sumStateType struct{}

// SumStateType is the DataType of SumStates
var SumStateType types.DataType = sumStateType{}

func (sumStateType) ID() int        { return SumStateTypeID }
func (sumStateType) Name() string   { return "sum_state" }
func (sumStateType) FixedSize() int { return 24 }

func (sumStateType) Value(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case SumState:
		return s, nil
	}
	return nil, fmt.Errorf("Cannot convert %#v to sum_state", v)
}

// Compare orders states by sum. Empty states sort before populated ones.
func (sumStateType) Compare(a, b interface{}) int {
	if c, ok := types.CompareNils(a, b); ok {
		return c
	}
	as, bs := a.(SumState), b.(SumState)
	switch {
	case !as.Populated && !bs.Populated:
		return 0
	case !as.Populated:
		return -1
	case !bs.Populated:
		return 1
	}
	return types.Double.Compare(as.Result(), bs.Result())
}

func (sumStateType) WriteValueTo(out *types.StreamOutput, v interface{}) error {
	out.WriteBool(v != nil)
	if v == nil {
		return nil
	}
	s, err := asSumState(v)
	if err != nil {
		return err
	}
	out.WriteBool(s.Populated)
	out.WriteDouble(s.Value)
	out.WriteDouble(s.Compensation)
	return nil
}

func (sumStateType) ReadValueFrom(in *types.StreamInput) (interface{}, error) {
	present, err := in.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	populated, err := in.ReadBool()
	if err != nil {
		return nil, err
	}
	v, err := in.ReadDouble()
	if err != nil {
		return nil, err
	}
	c, err := in.ReadDouble()
	if err != nil {
		return nil, err
	}
	return SumState{Value: v, Compensation: c, Populated: populated}, nil
}

func asSumState(v interface{}) (SumState, error) {
	switch s := v.(type) {
	case nil:
		return SumState{}, nil
	case SumState:
		return s, nil
	}
	return SumState{}, fmt.Errorf("Incoming state is not a SumState: %#v", v)
}

// Sum adds up the non-null values of a numeric column
type Sum struct {
	info sifql.FunctionInfo
}

func resolveSum(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
	if len(argTypes) != 1 || !(types.IsNumeric(argTypes[0]) || argTypes[0].ID() == types.UndefinedID) {
		return nil, functions.ResolutionError(SumName, argTypes)
	}
	return &Sum{info: sifql.FunctionInfo{
		Ident:      sifql.FunctionIdent{Name: SumName, ArgumentTypes: argTypes},
		ReturnType: types.Double,
		Kind:       sifql.AggregateFunctionKind,
	}}, nil
}

// Info returns the descriptor of this variant
func (a *Sum) Info() sifql.FunctionInfo {
	return a.info
}

// PartialType returns SumStateType
func (a *Sum) PartialType() types.DataType {
	return SumStateType
}

// NewState charges mem for the fixed size of a SumState
func (a *Sum) NewState(mem sifql.MemoryGovernor) (sifql.PartialState, error) {
	if err := mem.Charge(int64(SumStateType.FixedSize())); err != nil {
		return nil, err
	}
	return SumState{}, nil
}

// Iterate adds the argument's value to state, ignoring nulls
func (a *Sum) Iterate(mem sifql.MemoryGovernor, state sifql.PartialState, args ...sifql.Input) (sifql.PartialState, error) {
	s, err := asSumState(state)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects an argument", a.info.Ident)
	}
	v := args[0].Value()
	if v == nil {
		return s, nil
	}
	f, err := types.ToFloat64(v)
	if err != nil {
		return nil, err
	}
	return s.Add(f), nil
}

// Reduce merges two SumStates
func (a *Sum) Reduce(mem sifql.MemoryGovernor, x, y sifql.PartialState) (sifql.PartialState, error) {
	if x == nil {
		return y, nil
	}
	if y == nil {
		return x, nil
	}
	xs, err := asSumState(x)
	if err != nil {
		return nil, err
	}
	ys, err := asSumState(y)
	if err != nil {
		return nil, err
	}
	return xs.Merge(ys), nil
}

// TerminatePartial returns the sum as a double, or nil if no value was summed
func (a *Sum) TerminatePartial(mem sifql.MemoryGovernor, state sifql.PartialState) (interface{}, error) {
	s, err := asSumState(state)
	if err != nil {
		return nil, err
	}
	if !s.Populated {
		return nil, nil
	}
	return s.Result(), nil
}

// NormalizeSymbol rewrites sum(NULL) to a null literal
func (a *Sum) NormalizeSymbol(fn *sifql.Function) sifql.Symbol {
	if len(fn.Arguments) == 1 && sifql.IsValueSymbol(fn.Arguments[0]) && fn.Arguments[0].ValueType().ID() == types.UndefinedID {
		return &sifql.Literal{Value: nil, Type: types.Double}
	}
	return fn
}

var _ sifql.AggregationFunction = (*Sum)(nil)
