package functions

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/errors"
	"github.com/go-sif/sifql/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of resolved signatures a Registry keeps by default
const DefaultCacheSize = 1024

// A Resolver selects the function variant matching an ordered list of argument types
type Resolver interface {
	ForTypes(argTypes []types.DataType) (sifql.FunctionImplementation, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(argTypes []types.DataType) (sifql.FunctionImplementation, error)

// ForTypes calls f
func (f ResolverFunc) ForTypes(argTypes []types.DataType) (sifql.FunctionImplementation, error) {
	return f(argTypes)
}

type resolved struct {
	signature string
	impl      sifql.FunctionImplementation
}

// Registry maps function names to Resolvers. Resolved variants are cached by signature
// (name plus ordered argument type ids), so each signature is resolved once.
type Registry struct {
	lock      sync.RWMutex
	resolvers map[string]Resolver
	cache     *lru.Cache[uint64, resolved]
	inflight  singleflight.Group
}

// NewRegistry is a factory for Registries
func NewRegistry(cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[uint64, resolved](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		resolvers: make(map[string]Resolver),
		cache:     cache,
	}, nil
}

// Register adds a Resolver for the function called name
func (r *Registry) Register(name string, resolver Resolver) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.resolvers[name]; ok {
		return fmt.Errorf("Function %s is already registered", name)
	}
	r.resolvers[name] = resolver
	return nil
}

// Get resolves the function variant for ident, failing with a FunctionResolutionError
// if no registered variant matches
func (r *Registry) Get(ident sifql.FunctionIdent) (sifql.FunctionImplementation, error) {
	sig := signature(ident)
	key := xxhash.Sum64String(sig)
	if cached, ok := r.cache.Get(key); ok && cached.signature == sig {
		return cached.impl, nil
	}
	impl, err, _ := r.inflight.Do(sig, func() (interface{}, error) {
		r.lock.RLock()
		resolver, ok := r.resolvers[ident.Name]
		r.lock.RUnlock()
		if !ok {
			return nil, resolutionError(ident)
		}
		impl, err := resolver.ForTypes(ident.ArgumentTypes)
		if err != nil {
			return nil, err
		}
		if impl == nil {
			return nil, resolutionError(ident)
		}
		r.cache.Add(key, resolved{signature: sig, impl: impl})
		return impl, nil
	})
	if err != nil {
		return nil, err
	}
	return impl.(sifql.FunctionImplementation), nil
}

// GetAggregation resolves an AggregationFunction variant for ident
func (r *Registry) GetAggregation(ident sifql.FunctionIdent) (sifql.AggregationFunction, error) {
	impl, err := r.Get(ident)
	if err != nil {
		return nil, err
	}
	agg, ok := impl.(sifql.AggregationFunction)
	if !ok {
		return nil, fmt.Errorf("%s is not an aggregate function: %w", ident, resolutionError(ident))
	}
	return agg, nil
}

// GetScalar resolves a ScalarFunction variant for ident
func (r *Registry) GetScalar(ident sifql.FunctionIdent) (sifql.ScalarFunction, error) {
	impl, err := r.Get(ident)
	if err != nil {
		return nil, err
	}
	scalar, ok := impl.(sifql.ScalarFunction)
	if !ok {
		return nil, fmt.Errorf("%s is not a scalar function: %w", ident, resolutionError(ident))
	}
	return scalar, nil
}

// Normalize applies compile-time rewrites to every function call within s, bottom-up
func (r *Registry) Normalize(s sifql.Symbol) (sifql.Symbol, error) {
	fn, ok := s.(*sifql.Function)
	if !ok {
		return s, nil
	}
	args := make([]sifql.Symbol, len(fn.Arguments))
	for i, a := range fn.Arguments {
		na, err := r.Normalize(a)
		if err != nil {
			return nil, err
		}
		args[i] = na
	}
	impl, err := r.Get(fn.Info.Ident)
	if err != nil {
		return nil, err
	}
	return impl.NormalizeSymbol(&sifql.Function{Info: fn.Info, Arguments: args}), nil
}

// NewCall resolves name for the value types of args and returns the bound call
func (r *Registry) NewCall(name string, args ...sifql.Symbol) (*sifql.Function, error) {
	argTypes := make([]types.DataType, len(args))
	for i, a := range args {
		argTypes[i] = a.ValueType()
	}
	impl, err := r.Get(sifql.FunctionIdent{Name: name, ArgumentTypes: argTypes})
	if err != nil {
		return nil, err
	}
	return &sifql.Function{Info: impl.Info(), Arguments: args}, nil
}

// resolutionError builds the FunctionResolutionError for ident
func resolutionError(ident sifql.FunctionIdent) error {
	return errors.FunctionResolutionError{Name: ident.Name, ArgumentTypes: ident.ArgumentTypeNames()}
}

// ResolutionError is exported for Resolvers implemented in other packages
func ResolutionError(name string, argTypes []types.DataType) error {
	return resolutionError(sifql.FunctionIdent{Name: name, ArgumentTypes: argTypes})
}

func signature(ident sifql.FunctionIdent) string {
	var sb strings.Builder
	sb.WriteString(ident.Name)
	sb.WriteByte('(')
	for i, t := range ident.ArgumentTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(t.ID()))
	}
	sb.WriteByte(')')
	return sb.String()
}
