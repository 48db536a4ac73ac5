package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dbsmedya/gofetch/internal/types"
)

// Record is one instance of a schema. Values are stored by field position.
// A record is owned by the collection of its schema and merged in place on
// re-fetch, so pointers held elsewhere stay valid.
type Record struct {
	schema *Schema

	mu     sync.RWMutex
	values []interface{}
	id     interface{}
	extra  bool
}

// NewRecord coerces a row into a record of s. Accepted rows are tuples
// ([]interface{} in field order), objects (map[string]interface{} keyed by
// field name or aka) and existing records of the same schema.
func NewRecord(s *Schema, row interface{}) (*Record, error) {
	r := &Record{
		schema: s,
		values: make([]interface{}, len(s.Fields)),
	}
	if err := r.assign(row); err != nil {
		return nil, err
	}
	return r, nil
}

// Merge copies the values of row onto r. Tuples and records overwrite every
// field; objects overwrite only the keys they carry.
func (r *Record) Merge(row interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assign(row)
}

func (r *Record) assign(row interface{}) error {
	switch v := row.(type) {
	case *Record:
		if v == r {
			return nil
		}
		if v.schema != r.schema {
			return fmt.Errorf("cannot merge %s record into %s", v.schema.Name, r.schema.Name)
		}
		v.mu.RLock()
		copy(r.values, v.values)
		r.id = v.id
		v.mu.RUnlock()
	case []interface{}:
		for i := range r.values {
			if i < len(v) {
				r.values[i] = v[i]
			} else {
				r.values[i] = nil
			}
		}
	case map[string]interface{}:
		for k, val := range v {
			if pos, ok := r.schema.positions[k]; ok {
				r.values[pos] = val
			} else if k == "id" {
				r.id = val
			}
		}
	default:
		return fmt.Errorf("cannot coerce %T into %s record", row, r.schema.Name)
	}

	r.derive()
	return nil
}

// derive recomputes the identity from the identity fields.
func (r *Record) derive() {
	s := r.schema
	if len(s.IDFields) > 1 {
		parts := make([]string, len(s.IDFields))
		for i, k := range s.IDFields {
			parts[i] = types.Key(r.values[s.positions[k]])
		}
		r.id = strings.Join(parts, IDSeparator)
		return
	}
	if pos, ok := s.positions["id"]; ok {
		r.id = r.values[pos]
	}
}

// Schema returns the schema of the record.
func (r *Record) Schema() *Schema {
	return r.schema
}

// ID returns the derived identity.
func (r *Record) ID() interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

// Value returns the value of a declared field or "id"; unknown names yield nil.
func (r *Record) Value(name string) interface{} {
	v, _ := r.Lookup(name)
	return v
}

// Lookup returns the value of a declared field and whether it is declared.
func (r *Record) Lookup(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "id" {
		return r.id, true
	}
	pos, ok := r.schema.positions[name]
	if !ok {
		return nil, false
	}
	return r.values[pos], true
}

// Set assigns a declared field. It reports false for undeclared names.
func (r *Record) Set(name string, value interface{}) bool {
	pos, ok := r.schema.positions[name]
	if !ok {
		return false
	}
	r.mu.Lock()
	r.values[pos] = value
	r.derive()
	r.mu.Unlock()
	return true
}

// IsExtra reports whether the record was loaded only to satisfy a reference.
func (r *Record) IsExtra() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extra
}

// SetExtra sets the reference-only marker.
func (r *Record) SetExtra(extra bool) {
	r.mu.Lock()
	r.extra = extra
	r.mu.Unlock()
}

// Tuple returns a copy of the values in field order.
func (r *Record) Tuple() []interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]interface{}(nil), r.values...)
}

// Map returns the values keyed by field name, plus "id".
func (r *Record) Map() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]interface{}, len(r.values)+1)
	for i, f := range r.schema.Fields {
		out[f.Name] = r.values[i]
	}
	out["id"] = r.id
	return out
}

func (r *Record) String() string {
	return fmt.Sprintf("%s(%v)", r.schema.Aka, r.ID())
}
