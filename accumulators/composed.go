package accumulators

import (
	"fmt"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/types"
)

// Aggregator binds an AggregationFunction to the positions of its arguments within incoming rows
type Aggregator struct {
	Fn     sifql.AggregationFunction
	Inputs []int
}

// Compose returns a new Composed, charging states against mem
func Compose(mem sifql.MemoryGovernor, aggs ...Aggregator) *Composed {
	return &Composed{aggs: aggs, mem: mem}
}

// Composed drives several Aggregators over the same rows, keeping one state per Aggregator
type Composed struct {
	aggs []Aggregator
	mem  sifql.MemoryGovernor
}

// Size returns the number of composed Aggregators
func (c *Composed) Size() int {
	return len(c.aggs)
}

// PartialTypes returns the PartialType of every composed Aggregator
func (c *Composed) PartialTypes() []types.DataType {
	result := make([]types.DataType, len(c.aggs))
	for i, a := range c.aggs {
		result[i] = a.Fn.PartialType()
	}
	return result
}

// NewStates creates a fresh state for every composed Aggregator
func (c *Composed) NewStates() ([]sifql.PartialState, error) {
	states := make([]sifql.PartialState, len(c.aggs))
	for i, a := range c.aggs {
		s, err := a.Fn.NewState(c.mem)
		if err != nil {
			return nil, err
		}
		states[i] = s
	}
	return states, nil
}

// Iterate folds the raw values of row into states
func (c *Composed) Iterate(states []sifql.PartialState, row sifql.Row) error {
	for i, a := range c.aggs {
		args := make([]sifql.Input, len(a.Inputs))
		for j, idx := range a.Inputs {
			if idx >= row.Size() {
				return fmt.Errorf("%s refers to column %d of a row with %d columns", a.Fn.Info().Ident, idx, row.Size())
			}
			args[j] = sifql.Value{V: row.Get(idx)}
		}
		s, err := a.Fn.Iterate(c.mem, states[i], args...)
		if err != nil {
			return err
		}
		states[i] = s
	}
	return nil
}

// ReduceRow merges the partial states carried by row into states. Each Aggregator's
// first input position holds its partial state.
func (c *Composed) ReduceRow(states []sifql.PartialState, row sifql.Row) error {
	for i, a := range c.aggs {
		if len(a.Inputs) == 0 || a.Inputs[0] >= row.Size() {
			return fmt.Errorf("%s has no partial state input", a.Fn.Info().Ident)
		}
		s, err := a.Fn.Reduce(c.mem, states[i], row.Get(a.Inputs[0]))
		if err != nil {
			return err
		}
		states[i] = s
	}
	return nil
}

// Merge merges others into states
func (c *Composed) Merge(states, others []sifql.PartialState) error {
	if len(others) != len(c.aggs) {
		return fmt.Errorf("Incoming states have %d entries, expected %d", len(others), len(c.aggs))
	}
	for i, a := range c.aggs {
		s, err := a.Fn.Reduce(c.mem, states[i], others[i])
		if err != nil {
			return err
		}
		states[i] = s
	}
	return nil
}

// Results terminates every state
func (c *Composed) Results(states []sifql.PartialState) ([]interface{}, error) {
	result := make([]interface{}, len(c.aggs))
	for i, a := range c.aggs {
		v, err := a.Fn.TerminatePartial(c.mem, states[i])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// ToBytes serializes states using their registered DataTypes
func (c *Composed) ToBytes(states []sifql.PartialState) ([]byte, error) {
	out := types.NewStreamOutput()
	for i, a := range c.aggs {
		if err := types.WriteValue(out, a.Fn.PartialType(), states[i]); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// FromBytes deserializes states written by ToBytes
func (c *Composed) FromBytes(buff []byte) ([]sifql.PartialState, error) {
	in := types.NewStreamInput(buff)
	states := make([]sifql.PartialState, len(c.aggs))
	for i, a := range c.aggs {
		s, err := types.ReadValue(in, a.Fn.PartialType())
		if err != nil {
			return nil, err
		}
		states[i] = s
	}
	return states, nil
}
