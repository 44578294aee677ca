// Package cluster tracks the membership of a sifql cluster and the allocation of
// data source slices to its nodes, as seen from the executing node.
package cluster
