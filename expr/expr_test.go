package expr

import (
	"fmt"
	"testing"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/types"
	"github.com/stretchr/testify/require"
)

type mapDocument map[string]interface{}

func (d mapDocument) Lookup(ref *sifql.Reference) (interface{}, error) {
	v, ok := d[ref.Column.FQN()]
	if !ok {
		return nil, fmt.Errorf("no column %s", ref.Column.FQN())
	}
	return v, nil
}

func newCompiler(t *testing.T) (*Compiler, *functions.Registry) {
	fns, err := functions.NewRegistry(0)
	require.Nil(t, err)
	require.Nil(t, functions.RegisterScalars(fns))
	return NewCompiler(fns), fns
}

func TestRowBuilderProjectsAndFilters(t *testing.T) {
	c, fns := newCompiler(t)
	name := sifql.NewReference("name", types.String)
	age := sifql.NewReference("details.age", types.Integer)
	filter, err := fns.NewCall(functions.GtName, age, sifql.NewLiteral(int64(35)))
	require.Nil(t, err)

	b, err := NewRowBuilder(c, []sifql.Symbol{name, age}, filter)
	require.Nil(t, err)

	row, err := b.Build(mapDocument{"name": "Arthur", "details.age": float64(38)})
	require.Nil(t, err)
	require.Equal(t, sifql.ArrayRow{"Arthur", int32(38)}, row)

	row, err = b.Build(mapDocument{"name": "Trillian", "details.age": float64(33)})
	require.Nil(t, err)
	require.Nil(t, row)

	// a null age never matches
	row, err = b.Build(mapDocument{"name": "Marvin", "details.age": nil})
	require.Nil(t, err)
	require.Nil(t, row)

	_, err = b.Build(mapDocument{"name": "Zaphod"})
	require.NotNil(t, err)
}

func TestInputColumns(t *testing.T) {
	c, fns := newCompiler(t)
	isNull, err := fns.NewCall(functions.IsNullName, &sifql.InputColumn{Index: 1, Type: types.Long})
	require.Nil(t, err)
	e, err := c.Compile(isNull)
	require.Nil(t, err)

	v, err := e.Evaluate(nil, sifql.ArrayRow{"a", nil})
	require.Nil(t, err)
	require.True(t, Matches(v))
	v, err = e.Evaluate(nil, sifql.ArrayRow{"a", int64(1)})
	require.Nil(t, err)
	require.False(t, Matches(v))
	_, err = e.Evaluate(nil, sifql.ArrayRow{"a"})
	require.NotNil(t, err)
}

func TestAggregatesAreNotCompiled(t *testing.T) {
	c, _ := newCompiler(t)
	call := &sifql.Function{Info: sifql.FunctionInfo{
		Ident:      sifql.FunctionIdent{Name: "count"},
		ReturnType: types.Long,
		Kind:       sifql.AggregateFunctionKind,
	}}
	_, err := c.Compile(call)
	require.NotNil(t, err)
}

func TestReferences(t *testing.T) {
	_, fns := newCompiler(t)
	name := sifql.NewReference("name", types.String)
	age := sifql.NewReference("details.age", types.Integer)
	cond, err := fns.NewCall(functions.LtName, age, sifql.NewLiteral(int64(40)))
	require.Nil(t, err)
	require.Equal(t, []*sifql.Reference{name, age}, References(name, cond))
}

func TestMatches(t *testing.T) {
	require.True(t, Matches(true))
	require.False(t, Matches(false))
	require.False(t, Matches(nil))
	require.False(t, Matches("true"))
}
