package sifql

import "sort"

// Routing assigns the slices (shards or files) of each data source to the nodes
// which read them during one CollectPhase: node id -> source id -> slice ids.
type Routing struct {
	Locations map[string]map[string][]int
}

// NewRouting is a factory for Routings
func NewRouting(locations map[string]map[string][]int) *Routing {
	if locations == nil {
		locations = make(map[string]map[string][]int)
	}
	return &Routing{Locations: locations}
}

// NodeIDs returns the ids of all routed nodes, sorted
func (r *Routing) NodeIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Locations))
	for id := range r.Locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LocationsFor returns the sources and slices assigned to nodeID
func (r *Routing) LocationsFor(nodeID string) (map[string][]int, bool) {
	if r == nil {
		return nil, false
	}
	locs, ok := r.Locations[nodeID]
	return locs, ok
}

// NumSlices returns the number of slices assigned to nodeID, across all sources
func (r *Routing) NumSlices(nodeID string) int {
	locs, _ := r.LocationsFor(nodeID)
	total := 0
	for _, slices := range locs {
		total += len(slices)
	}
	return total
}

// ClusterState is the live view of the cluster a node is executing in
type ClusterState interface {
	LocalNodeID() string                                      // LocalNodeID returns the id of the executing node
	HasNode(nodeID string) bool                               // HasNode returns true iff nodeID is a live member of the cluster
	IsAllocated(nodeID string, source string, slice int) bool // IsAllocated returns true iff the slice of source is currently allocated to nodeID
}
