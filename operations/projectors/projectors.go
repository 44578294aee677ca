// Package projectors transforms the rows collected by a phase before they are handed downstream.
// Every projector is a RowReceiver wrapping the next one, so a projection chain can be placed
// between Collectors and the final receiver.
package projectors

import (
	"fmt"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/expr"
	"github.com/go-sif/sifql/functions"
	"github.com/go-sif/sifql/memory"
)

// Factory builds projector chains
type Factory struct {
	fns      *functions.Registry
	compiler *expr.Compiler
}

// NewFactory is a factory for Factories
func NewFactory(fns *functions.Registry) *Factory {
	return &Factory{fns: fns, compiler: expr.NewCompiler(fns)}
}

// FailureReporter is told about failures raised by projectors themselves, such as a memory
// ceiling breach while aggregating. Failures passed down from upstream are not reported.
type FailureReporter interface {
	ReportFailure(err error)
}

// Wrap returns a RowReceiver which applies projections, in order, to every row before
// handing it to downstream. Memory held by aggregation states is charged to mem.
func (f *Factory) Wrap(projections []sifql.Projection, mem sifql.MemoryGovernor, downstream sifql.RowReceiver) (sifql.RowReceiver, error) {
	return f.wrap(projections, mem, nil, downstream)
}

// ForPhase wraps downstream with the projections of phase. A limit on a phase which
// allows unordered limits is applied after all other projections.
func (f *Factory) ForPhase(phase *sifql.PhaseDescriptor, mem sifql.MemoryGovernor, downstream sifql.RowReceiver) (sifql.RowReceiver, error) {
	return f.wrap(phaseProjections(phase), mem, nil, downstream)
}

// ForJob is like ForPhase, charging memory to the job's governor and reporting projector
// failures to the job
func (f *Factory) ForJob(phase *sifql.PhaseDescriptor, jobCtx sifql.JobContext, downstream sifql.RowReceiver) (sifql.RowReceiver, error) {
	return f.wrap(phaseProjections(phase), jobCtx.MemoryGovernor(), jobCtx, downstream)
}

func phaseProjections(phase *sifql.PhaseDescriptor) []sifql.Projection {
	projections := phase.Projections
	if phase.Limit != nil && phase.UnorderedLimitAllowed {
		projections = append(append([]sifql.Projection{}, projections...), &sifql.TopNProjection{Limit: *phase.Limit})
	}
	return projections
}

func (f *Factory) wrap(projections []sifql.Projection, mem sifql.MemoryGovernor, reporter FailureReporter, downstream sifql.RowReceiver) (sifql.RowReceiver, error) {
	receiver := downstream
	for i := len(projections) - 1; i >= 0; i-- {
		var err error
		receiver, err = f.wrapOne(projections[i], mem, reporter, receiver)
		if err != nil {
			return nil, err
		}
	}
	return receiver, nil
}

func (f *Factory) wrapOne(p sifql.Projection, mem sifql.MemoryGovernor, reporter FailureReporter, downstream sifql.RowReceiver) (sifql.RowReceiver, error) {
	switch proj := p.(type) {
	case *sifql.FilterProjection:
		return newFilterProjector(f.compiler, proj, downstream)
	case *sifql.TopNProjection:
		return newTopNProjector(proj, downstream)
	case *sifql.AggregationProjection:
		return newAggregationProjector(f.fns, proj, memory.NewAccount(mem), reporter, downstream)
	}
	return nil, fmt.Errorf("Unsupported projection %T", p)
}

// passThrough forwards the lifecycle of a RowReceiver to downstream
type passThrough struct {
	downstream sifql.RowReceiver
}

func (p *passThrough) Prepare() {
	p.downstream.Prepare()
}

func (p *passThrough) Resumed() <-chan struct{} {
	return p.downstream.Resumed()
}

func (p *passThrough) Finish() {
	p.downstream.Finish()
}

func (p *passThrough) Fail(err error) {
	p.downstream.Fail(err)
}
