package expr

import (
	"github.com/go-sif/sifql"
)

// RowBuilder produces the output rows of a phase from source documents.
// Documents for which the filter does not evaluate to true are skipped.
type RowBuilder struct {
	outputs []Expression
	filter  Expression
}

// NewRowBuilder compiles outputs and the optional filter (nil when absent)
func NewRowBuilder(c *Compiler, outputs []sifql.Symbol, filter sifql.Symbol) (*RowBuilder, error) {
	compiled, err := c.CompileAll(outputs)
	if err != nil {
		return nil, err
	}
	b := &RowBuilder{outputs: compiled}
	if filter != nil {
		b.filter, err = c.Compile(filter)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Build returns the output row for doc, or nil if doc is filtered out
func (b *RowBuilder) Build(doc Document) (sifql.Row, error) {
	if b.filter != nil {
		v, err := b.filter.Evaluate(doc, nil)
		if err != nil {
			return nil, err
		}
		if !Matches(v) {
			return nil, nil
		}
	}
	row := make(sifql.ArrayRow, len(b.outputs))
	for i, o := range b.outputs {
		v, err := o.Evaluate(doc, nil)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
