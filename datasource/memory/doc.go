// Package memory provides a CollectSource over in-memory shards of JSON lines documents.
// Shards are checked against the live cluster before they are read.
package memory
