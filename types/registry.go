package types

import (
	"fmt"
	"sync"

	"github.com/go-sif/sifql/errors"
)

// CustomTypeIDStart is the first id available to registered partial state types.
// Ids below it are reserved for built-in scalar types.
const CustomTypeIDStart = 16384

// Registry maps type ids to DataTypes. It is populated once during startup,
// before any value is streamed, and is safe for concurrent lookups afterwards.
type Registry struct {
	lock   sync.RWMutex
	byID   map[int]DataType
	byName map[string]DataType
}

// NewRegistry returns a Registry containing all built-in scalar types
func NewRegistry() *Registry {
	r := &Registry{
		byID:   make(map[int]DataType),
		byName: make(map[string]DataType),
	}
	for _, t := range BuiltIns() {
		r.byID[t.ID()] = t
		r.byName[t.Name()] = t
	}
	return r
}

// Register adds a custom DataType to this Registry. Registering a type whose id
// is already taken (or falls into the built-in range) is an error.
func (r *Registry) Register(t DataType) error {
	if t.ID() < CustomTypeIDStart {
		return fmt.Errorf("Type %s has id %d, custom type ids must be >= %d", t.Name(), t.ID(), CustomTypeIDStart)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if existing, ok := r.byID[t.ID()]; ok {
		if existing == t {
			return nil
		}
		return errors.DuplicateTypeIDError{ID: t.ID(), Existing: existing.Name(), Incoming: t.Name()}
	}
	if _, ok := r.byName[t.Name()]; ok {
		return fmt.Errorf("A type named %s is already registered", t.Name())
	}
	r.byID[t.ID()] = t
	r.byName[t.Name()] = t
	return nil
}

// Lookup returns the DataType registered under the given id
func (r *Registry) Lookup(id int) (DataType, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// LookupName returns the DataType registered under the given name
func (r *Registry) LookupName(name string) (DataType, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// WriteValue serializes v according to t
func WriteValue(out *StreamOutput, t DataType, v interface{}) error {
	return t.WriteValueTo(out, v)
}

// ReadValue deserializes a value of type t
func ReadValue(in *StreamInput, t DataType) (interface{}, error) {
	return t.ReadValueFrom(in)
}

// WriteTypedValue serializes the id of t followed by v, so that the value can be
// read back without knowing its type in advance
func WriteTypedValue(out *StreamOutput, t DataType, v interface{}) error {
	out.WriteVLong(int64(t.ID()))
	return t.WriteValueTo(out, v)
}

// ReadTypedValue reads a value written by WriteTypedValue
func (r *Registry) ReadTypedValue(in *StreamInput) (DataType, interface{}, error) {
	id, err := in.ReadVLong()
	if err != nil {
		return nil, nil, err
	}
	t, ok := r.Lookup(int(id))
	if !ok {
		return nil, nil, fmt.Errorf("No type registered with id %d", id)
	}
	v, err := t.ReadValueFrom(in)
	if err != nil {
		return nil, nil, err
	}
	return t, v, nil
}
