// Package sys provides a CollectSource producing one row describing the executing node.
// Columns are computed by a table of named synthesizers.
package sys
