package projectors

import (
	"fmt"

	"github.com/go-sif/sifql"
)

// topNProjector skips the first offset rows and stops after limit rows were passed on
type topNProjector struct {
	passThrough
	limit   int
	offset  int
	skipped int
	passed  int
}

func newTopNProjector(p *sifql.TopNProjection, downstream sifql.RowReceiver) (*topNProjector, error) {
	if p.Limit < 0 || p.Offset < 0 {
		return nil, fmt.Errorf("Invalid limit %d / offset %d", p.Limit, p.Offset)
	}
	return &topNProjector{
		passThrough: passThrough{downstream: downstream},
		limit:       p.Limit,
		offset:      p.Offset,
	}, nil
}

func (p *topNProjector) SetNextRow(row sifql.Row) sifql.ReceiverStatus {
	if p.skipped < p.offset {
		p.skipped++
		return sifql.NeedMore
	}
	if p.passed >= p.limit {
		return sifql.Stop
	}
	p.passed++
	status := p.downstream.SetNextRow(row)
	if p.passed >= p.limit {
		return sifql.Stop
	}
	return status
}
