package projectors

import (
	"errors"
	"fmt"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/accumulators"
	serrors "github.com/go-sif/sifql/errors"
	"github.com/go-sif/sifql/functions"
	iutil "github.com/go-sif/sifql/internal/util"
	"github.com/go-sif/sifql/memory"
)

// aggregationProjector folds all incoming rows into one row holding either partial states
// (To == PartialStep) or terminal results (To == FinalStep)
type aggregationProjector struct {
	passThrough
	composed *accumulators.Composed
	account  *memory.Account
	reporter FailureReporter
	fold     func(row sifql.Row) error
	states   []sifql.PartialState
	final    bool
	err      error
}

func newAggregationProjector(fns *functions.Registry, p *sifql.AggregationProjection, account *memory.Account, reporter FailureReporter, downstream sifql.RowReceiver) (*aggregationProjector, error) {
	if len(p.Aggregations) == 0 {
		return nil, fmt.Errorf("Aggregation projection without aggregations")
	}
	from, to := p.Aggregations[0].From, p.Aggregations[0].To
	if from == sifql.FinalStep || to == sifql.IterStep || from >= to {
		return nil, fmt.Errorf("Unsupported aggregation steps %d -> %d", from, to)
	}
	aggs := make([]accumulators.Aggregator, len(p.Aggregations))
	for i, a := range p.Aggregations {
		if a.From != from || a.To != to {
			return nil, fmt.Errorf("All aggregations of a projection must use the same steps")
		}
		fn, err := fns.GetAggregation(a.Ident)
		if err != nil {
			return nil, err
		}
		inputs := make([]int, len(a.Inputs))
		for j, in := range a.Inputs {
			col, ok := in.(*sifql.InputColumn)
			if !ok {
				return nil, fmt.Errorf("Aggregation input %s is not an input column", in)
			}
			inputs[j] = col.Index
		}
		aggs[i] = accumulators.Aggregator{Fn: fn, Inputs: inputs}
	}
	proj := &aggregationProjector{
		passThrough: passThrough{downstream: downstream},
		composed:    accumulators.Compose(account, aggs...),
		account:     account,
		reporter:    reporter,
		final:       to == sifql.FinalStep,
	}
	if from == sifql.IterStep {
		proj.fold = iutil.SafeRowOperation("Aggregation", func(row sifql.Row) error {
			return proj.composed.Iterate(proj.states, row)
		})
	} else {
		proj.fold = iutil.SafeRowOperation("Reduction", func(row sifql.Row) error {
			return proj.composed.ReduceRow(proj.states, row)
		})
	}
	return proj, nil
}

func (p *aggregationProjector) ensureStates() error {
	if p.states != nil {
		return nil
	}
	states, err := p.composed.NewStates()
	if err != nil {
		return err
	}
	p.states = states
	return nil
}

func (p *aggregationProjector) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	if p.err != nil {
		return sifql.Stop
	}
	if err := p.ensureStates(); err != nil {
		p.setErr(err)
		return sifql.Stop
	}
	if err := p.fold(row); err != nil {
		p.setErr(err)
		return sifql.Stop
	}
	return sifql.NeedMore
}

// setErr records a failure of this projector and reports it. A memory ceiling breach is
// kept verbatim, without the row context added by the fold.
func (p *aggregationProjector) setErr(err error) {
	var limitErr serrors.MemoryLimitExceededError
	if errors.As(err, &limitErr) {
		err = limitErr
	}
	p.err = err
	if p.reporter != nil {
		p.reporter.ReportFailure(err)
	}
}

// Resumed never blocks, since rows are consumed into states
func (p *aggregationProjector) Resumed() <-chan struct{} {
	return sifql.ClosedChannel
}

func (p *aggregationProjector) Finish() {
	defer p.account.Close()
	if p.err == nil {
		if err := p.ensureStates(); err != nil {
			p.setErr(err)
		}
	}
	if p.err != nil {
		p.downstream.Fail(p.err)
		return
	}
	var row sifql.ArrayRow
	if p.final {
		results, err := p.composed.Results(p.states)
		if err != nil {
			p.setErr(err)
			p.downstream.Fail(p.err)
			return
		}
		row = results
	} else {
		row = append(sifql.ArrayRow{}, p.states...)
	}
	p.downstream.SetNextRow(row)
	p.downstream.Finish()
}

// Fail fails the downstream. A failure of this projector takes precedence over err, which
// is usually the kill it caused.
func (p *aggregationProjector) Fail(err error) {
	defer p.account.Close()
	if p.err != nil {
		err = p.err
	}
	p.downstream.Fail(err)
}
