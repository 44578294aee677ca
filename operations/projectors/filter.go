package projectors

import (
	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/expr"
	iutil "github.com/go-sif/sifql/internal/util"
)

type filterProjector struct {
	passThrough
	matches func(row sifql.Row) (bool, error)
	err     error
}

func newFilterProjector(c *expr.Compiler, p *sifql.FilterProjection, downstream sifql.RowReceiver) (*filterProjector, error) {
	cond, err := c.Compile(p.Condition)
	if err != nil {
		return nil, err
	}
	return &filterProjector{
		passThrough: passThrough{downstream: downstream},
		matches: iutil.SafeFilterOperation(func(row sifql.Row) (bool, error) {
			v, err := cond.Evaluate(nil, row)
			if err != nil {
				return false, err
			}
			return expr.Matches(v), nil
		}),
	}, nil
}

func (p *filterProjector) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	ok, err := p.matches(row)
	if err != nil {
		p.err = err
		return sifql.Stop
	}
	if !ok {
		return sifql.NeedMore
	}
	return p.downstream.SetNextRow(row)
}

func (p *filterProjector) Finish() {
	if p.err != nil {
		p.downstream.Fail(p.err)
		return
	}
	p.downstream.Finish()
}
