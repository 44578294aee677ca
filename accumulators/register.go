package accumulators

import (
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/types"
)

// Register adds the partial state types and resolvers of all aggregation functions
// in this package. It must be called once during startup, before any state is streamed.
func Register(fns *functions.Registry, typs *types.Registry) error {
	for _, t := range []types.DataType{LongStateType, SumStateType} {
		if err := typs.Register(t); err != nil {
			return err
		}
	}
	if err := fns.Register(CountName, functions.ResolverFunc(resolveCount)); err != nil {
		return err
	}
	return fns.Register(SumName, functions.ResolverFunc(resolveSum))
}
