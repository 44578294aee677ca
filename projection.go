package sifql

// ProjectionType identifies the concrete kind of a Projection
type ProjectionType string

const (
	// AggregationProjectionType projections fold rows into aggregate values
	AggregationProjectionType ProjectionType = "aggregation"
	// TopNProjectionType projections apply an offset and limit
	TopNProjectionType ProjectionType = "topn"
	// FilterProjectionType projections drop rows which do not match a condition
	FilterProjectionType ProjectionType = "filter"
)

// Projection is a transformation applied to the rows of a phase before they are handed downstream
type Projection interface {
	ProjectionType() ProjectionType
}

// AggregationStep is a stage of the map/reduce aggregation pipeline
type AggregationStep int

const (
	// IterStep values are raw column values
	IterStep AggregationStep = iota
	// PartialStep values are partial states
	PartialStep
	// FinalStep values are terminal results
	FinalStep
)

// Aggregation is one aggregate call within an AggregationProjection
type Aggregation struct {
	Ident  FunctionIdent
	Inputs []Symbol // InputColumns of the incoming row
	From   AggregationStep
	To     AggregationStep
}

// AggregationProjection aggregates all incoming rows into a single row with one value per Aggregation
type AggregationProjection struct {
	Aggregations []Aggregation
}

// ProjectionType returns AggregationProjectionType
func (p *AggregationProjection) ProjectionType() ProjectionType { return AggregationProjectionType }

// TopNProjection skips Offset rows and passes at most Limit rows
type TopNProjection struct {
	Limit  int
	Offset int
}

// ProjectionType returns TopNProjectionType
func (p *TopNProjection) ProjectionType() ProjectionType { return TopNProjectionType }

// FilterProjection drops rows for which Condition does not evaluate to true.
// Condition refers to the incoming row through InputColumns.
type FilterProjection struct {
	Condition Symbol
}

// ProjectionType returns FilterProjectionType
func (p *FilterProjection) ProjectionType() ProjectionType { return FilterProjectionType }
