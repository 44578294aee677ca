package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocation(t *testing.T) {
	s := NewState("node-1")
	s.Join("node-2")
	require.Equal(t, []string{"node-1", "node-2"}, s.Nodes())
	require.Nil(t, s.Allocate("node-1", "crew", 0))
	require.Nil(t, s.Allocate("node-2", "crew", 1))
	require.Nil(t, s.Allocate("node-1", "crew", 2))
	require.NotNil(t, s.Allocate("node-3", "crew", 3))

	require.True(t, s.IsAllocated("node-1", "crew", 0))
	require.False(t, s.IsAllocated("node-1", "crew", 1))

	routing := s.Routing("crew")
	require.Equal(t, map[string]map[string][]int{
		"node-1": {"crew": {0, 2}},
		"node-2": {"crew": {1}},
	}, routing.Locations)
	require.Equal(t, 2, routing.NumSlices("node-1"))
}

func TestLeaveDropsAllocations(t *testing.T) {
	s := NewState("node-1")
	s.Join("node-2")
	require.Nil(t, s.Allocate("node-2", "crew", 0))
	s.Leave("node-2")
	require.False(t, s.HasNode("node-2"))
	require.False(t, s.IsAllocated("node-2", "crew", 0))
	require.True(t, s.HasNode(s.LocalNodeID()))
}
