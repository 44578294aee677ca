package collect

import (
	"fmt"
	"sync"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/errors"
)

// SourceKey identifies the CollectSource responsible for a kind of CollectPhase
type SourceKey struct {
	Type    sifql.CollectPhaseType
	Handler string // empty for the default source of Type
}

// SourceResolver maps CollectPhases to the CollectSources which can execute them
type SourceResolver struct {
	lock    sync.RWMutex
	sources map[SourceKey]sifql.CollectSource
}

// NewSourceResolver is a factory for SourceResolvers
func NewSourceResolver() *SourceResolver {
	return &SourceResolver{sources: make(map[SourceKey]sifql.CollectSource)}
}

// Register adds the CollectSource for phases of phaseType handled by handler.
// An empty handler registers the default source for phaseType.
func (r *SourceResolver) Register(phaseType sifql.CollectPhaseType, handler string, source sifql.CollectSource) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	key := SourceKey{Type: phaseType, Handler: handler}
	if _, ok := r.sources[key]; ok {
		return fmt.Errorf("A collect source is already registered for %s (handler %q)", phaseType, handler)
	}
	r.sources[key] = source
	return nil
}

// GetService returns the CollectSource for phase: the source registered for its exact
// handler, or else the default source of its type
func (r *SourceResolver) GetService(phase sifql.CollectPhase) (sifql.CollectSource, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if source, ok := r.sources[SourceKey{Type: phase.Type(), Handler: phase.Handler()}]; ok {
		return source, nil
	}
	if source, ok := r.sources[SourceKey{Type: phase.Type()}]; ok {
		return source, nil
	}
	return nil, errors.UnsupportedCollectPhaseError{PhaseType: string(phase.Type()), Handler: phase.Handler()}
}
