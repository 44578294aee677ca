// Package file provides a CollectSource which reads JSON lines files from disk.
// Files are assigned to collectors in their entirety, so it is favourable if individual
// files represent roughly equal-sized divisions of data.
package file
