package sifql

import (
	"strings"

	"github.com/go-sif/sifql/types"
)

// FunctionKind distinguishes scalar from aggregate functions
type FunctionKind int

const (
	// ScalarFunctionKind functions compute one value per row
	ScalarFunctionKind FunctionKind = iota
	// AggregateFunctionKind functions fold many rows into one value
	AggregateFunctionKind
)

// FunctionIdent is the structural signature of a function: its name and ordered argument types
type FunctionIdent struct {
	Name          string
	ArgumentTypes []types.DataType
}

// ArgumentTypeNames returns the names of this FunctionIdent's argument types
func (f FunctionIdent) ArgumentTypeNames() []string {
	names := make([]string, len(f.ArgumentTypes))
	for i, t := range f.ArgumentTypes {
		names[i] = t.Name()
	}
	return names
}

// String returns the signature, e.g. "count(string)"
func (f FunctionIdent) String() string {
	return f.Name + "(" + strings.Join(f.ArgumentTypeNames(), ",") + ")"
}

// FunctionInfo describes a resolved function variant
type FunctionInfo struct {
	Ident      FunctionIdent
	ReturnType types.DataType
	Kind       FunctionKind
}

// FunctionImplementation is a resolved function variant
type FunctionImplementation interface {
	Info() FunctionInfo                  // Info returns the descriptor of this variant
	NormalizeSymbol(fn *Function) Symbol // NormalizeSymbol rewrites a call of this variant at compile time, returning fn if no rewrite applies
}

// PartialState is the mutable accumulator of one aggregation group. Its shape is
// defined by the AggregationFunction's PartialType.
type PartialState = interface{}

// AggregationFunction defines the state lifecycle of one aggregate function variant.
// Reduce must be associative and commutative, since partial states computed on different
// shards and nodes are combined in arbitrary order and tree shape.
type AggregationFunction interface {
	FunctionImplementation
	PartialType() types.DataType                                                         // PartialType returns the DataType of this function's PartialState
	NewState(mem MemoryGovernor) (PartialState, error)                                   // NewState charges mem for a fresh state and returns it
	Iterate(mem MemoryGovernor, state PartialState, args ...Input) (PartialState, error) // Iterate folds one row into state
	Reduce(mem MemoryGovernor, a, b PartialState) (PartialState, error)                  // Reduce merges two states
	TerminatePartial(mem MemoryGovernor, state PartialState) (interface{}, error)        // TerminatePartial projects state to the function's return type
}

// ScalarFunction computes one value from its arguments
type ScalarFunction interface {
	FunctionImplementation
	Evaluate(args ...Input) (interface{}, error) // Evaluate computes the function result
}

// MemoryGovernor tracks and bounds the memory held by partial states and buffered rows.
// It is shared by all collectors of a job and must be safe for concurrent use.
type MemoryGovernor interface {
	Charge(bytes int64) error // Charge accounts bytes, failing without side effects if the ceiling would be exceeded
	Release(bytes int64)      // Release returns previously charged bytes
	Allocated() int64         // Allocated returns the currently accounted number of bytes
}
