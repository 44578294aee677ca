package sifql

import (
	"fmt"
	"strings"
)

// Row is a single tuple of values produced by a Collector or a Projector
type Row interface {
	Size() int                  // Size returns the number of values in this Row
	Get(idx int) interface{}    // Get returns the value at the given index
	Materialize() []interface{} // Materialize returns a copy of the values in this Row
}

// ArrayRow is a Row backed by a slice of values
type ArrayRow []interface{}

// Size returns the number of values in this Row
func (r ArrayRow) Size() int {
	return len(r)
}

// Get returns the value at the given index
func (r ArrayRow) Get(idx int) interface{} {
	return r[idx]
}

// Materialize returns a copy of the values in this Row
func (r ArrayRow) Materialize() []interface{} {
	result := make([]interface{}, len(r))
	copy(result, r)
	return result
}

// String returns a string representation of this Row
func (r ArrayRow) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Input is a lazily evaluated argument to a function
type Input interface {
	Value() interface{}
}

// Value is an Input holding a constant
type Value struct {
	V interface{}
}

// Value returns the held constant
func (v Value) Value() interface{} {
	return v.V
}
