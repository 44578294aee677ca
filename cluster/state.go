package cluster

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-sif/sifql"
)

type sliceKey struct {
	source string
	slice  int
}

// State is a node's live view of the cluster. Collect sources consult it to
// detect Routings which no longer match the cluster.
type State struct {
	localID     string
	lock        sync.RWMutex
	nodes       map[string]struct{}
	allocations map[sliceKey]string
}

// NewState creates a State containing only the local node
func NewState(localID string) *State {
	return &State{
		localID:     localID,
		nodes:       map[string]struct{}{localID: {}},
		allocations: make(map[sliceKey]string),
	}
}

// Join adds nodeID to the cluster
func (s *State) Join(nodeID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nodes[nodeID] = struct{}{}
}

// Leave removes nodeID from the cluster, along with every slice allocated to it
func (s *State) Leave(nodeID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.nodes, nodeID)
	for k, owner := range s.allocations {
		if owner == nodeID {
			delete(s.allocations, k)
		}
	}
}

// Allocate assigns a slice of source to nodeID, moving it away from its previous owner
func (s *State) Allocate(nodeID string, source string, slice int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.nodes[nodeID]; !ok {
		return fmt.Errorf("Cannot allocate slice %d of %s to unknown node %s", slice, source, nodeID)
	}
	s.allocations[sliceKey{source, slice}] = nodeID
	return nil
}

// LocalNodeID returns the id of the executing node
func (s *State) LocalNodeID() string {
	return s.localID
}

// HasNode returns true iff nodeID is a live member of the cluster
func (s *State) HasNode(nodeID string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.nodes[nodeID]
	return ok
}

// IsAllocated returns true iff the slice of source is currently allocated to nodeID
func (s *State) IsAllocated(nodeID string, source string, slice int) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	owner, ok := s.allocations[sliceKey{source, slice}]
	return ok && owner == nodeID
}

// Nodes returns the ids of all live nodes, sorted
func (s *State) Nodes() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Routing builds a Routing of the given sources from the current allocations.
// Slices are listed in ascending order.
func (s *State) Routing(sources ...string) *sifql.Routing {
	wanted := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		wanted[src] = struct{}{}
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	locations := make(map[string]map[string][]int)
	for k, owner := range s.allocations {
		if _, ok := wanted[k.source]; !ok {
			continue
		}
		if locations[owner] == nil {
			locations[owner] = make(map[string][]int)
		}
		locations[owner][k.source] = append(locations[owner][k.source], k.slice)
	}
	for _, bySource := range locations {
		for _, slices := range bySource {
			sort.Ints(slices)
		}
	}
	return sifql.NewRouting(locations)
}

var _ sifql.ClusterState = (*State)(nil)
