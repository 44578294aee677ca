package jsonl

import (
	"github.com/go-sif/sifql"
	"github.com/tidwall/gjson"
)

// Document is a single parsed line of JSON
type Document struct {
	gjson.Result
}

// Lookup returns the value at the gjson path of ref's column, or nil if it does not exist
func (d Document) Lookup(ref *sifql.Reference) (interface{}, error) {
	return ToValue(d.Get(ref.Column.FQN())), nil
}

// ToValue converts a gjson value to the generic value representation used by DataTypes.
// Numbers become float64, objects and arrays are returned as their raw JSON.
func ToValue(r gjson.Result) interface{} {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Float()
	case gjson.String:
		return r.String()
	}
	if !r.Exists() {
		return nil
	}
	return r.Raw
}
