package sifql

import (
	"github.com/go-sif/sifql/types"
	uuid "github.com/gofrs/uuid"
)

// CollectPhaseType identifies the concrete kind of a CollectPhase
type CollectPhaseType string

const (
	// RoutedCollectPhaseType phases read shards or system rows assigned through a Routing
	RoutedCollectPhaseType CollectPhaseType = "ROUTED"
	// FileURICollectPhaseType phases read JSON lines files
	FileURICollectPhaseType CollectPhaseType = "FILE_URI"
)

// PhaseDescriptor holds the fields shared by all CollectPhases. It is created
// once at plan time and must not be modified afterwards.
type PhaseDescriptor struct {
	JobID                 uuid.UUID
	PhaseID               int
	Name                  string
	Routing               *Routing
	MaxRowGranularity     RowGranularity
	Outputs               []Symbol
	Projections           []Projection
	Filter                Symbol // nil if every row matches
	Limit                 *int   // nil if unlimited
	UnorderedLimitAllowed bool   // UnorderedLimitAllowed permits collectors to stop once Limit rows were produced, in any order
}

// OutputTypes returns the DataTypes of this phase's outputs
func (d *PhaseDescriptor) OutputTypes() []types.DataType {
	result := make([]types.DataType, len(d.Outputs))
	for i, o := range d.Outputs {
		result[i] = o.ValueType()
	}
	return result
}

// CollectPhase describes what to read, where, and how to shape the rows of one map-side phase
type CollectPhase interface {
	Type() CollectPhaseType       // Type returns the concrete kind of this CollectPhase
	Handler() string              // Handler disambiguates CollectSources of the same Type, or is empty
	Descriptor() *PhaseDescriptor // Descriptor returns the shared phase fields
}

// RoutedCollectPhase reads the slices assigned to each node by its Routing
type RoutedCollectPhase struct {
	PhaseDescriptor
	HandlerName string // e.g. "doc" for shards or "sys.nodes" for node rows
}

// Type returns RoutedCollectPhaseType
func (p *RoutedCollectPhase) Type() CollectPhaseType { return RoutedCollectPhaseType }

// Handler returns the name of the CollectSource handling this phase
func (p *RoutedCollectPhase) Handler() string { return p.HandlerName }

// Descriptor returns the shared phase fields
func (p *RoutedCollectPhase) Descriptor() *PhaseDescriptor { return &p.PhaseDescriptor }

// FileURICollectPhase reads JSON lines files. Each node reads the files matching URIs;
// when SharedStorage is true the files are split between the routed nodes instead.
type FileURICollectPhase struct {
	PhaseDescriptor
	URIs          []string // file:// URIs, plain paths or globs
	Compression   string   // "" or "gzip"
	SharedStorage bool
}

// Type returns FileURICollectPhaseType
func (p *FileURICollectPhase) Type() CollectPhaseType { return FileURICollectPhaseType }

// Handler returns an empty string, file collection has a single source
func (p *FileURICollectPhase) Handler() string { return "" }

// Descriptor returns the shared phase fields
func (p *FileURICollectPhase) Descriptor() *PhaseDescriptor { return &p.PhaseDescriptor }
