// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"reflect"
	"sort"
)

// Params is a plain parameter bag: field name or query expression mapped to
// a scalar or a list of scalars. A list value means "any of".
type Params map[string]interface{}

// Clone returns a shallow copy with list values copied.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if l, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), l...)
		}
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the parameter is present.
func (p Params) Has(k string) bool {
	_, ok := p[k]
	return ok
}

// Add merges value into the parameter named field. Values are de-duplicated,
// absent values are dropped (zero is kept except for "id"), and a single
// remaining value is stored unwrapped. An "id" parameter with no remaining
// values is stored as an empty list so that it can never be dispatched as an
// unconstrained request.
func (p Params) Add(field string, value interface{}) {
	seen := make(map[string]bool)
	var values []interface{}

	for _, src := range []interface{}{p[field], value} {
		for _, v := range List(src) {
			if !Truthy(v) && !(isZero(v) && field != "id") {
				continue
			}
			k := Key(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			values = append(values, v)
		}
	}

	switch {
	case len(values) == 1:
		p[field] = values[0]
	case len(values) > 1:
		p[field] = values
	case field == "id":
		p[field] = []interface{}{}
	}
}

func isZero(v interface{}) bool {
	return IsNumber(v) && ToInt64(v) == 0
}

// List normalises a parameter value into a slice: nil yields nil, slices of
// any element type are converted, and scalars are wrapped.
func List(v interface{}) []interface{} {
	switch l := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return l
	case string, []byte:
		return []interface{}{v}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []interface{}{v}
}

// IsList reports whether v is a list value.
func IsList(v interface{}) bool {
	switch v.(type) {
	case nil, string, []byte:
		return false
	case []interface{}:
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// Range is an inclusive [Min, Max] interval over ordered scalars, typically
// calendar values such as 20201101.
type Range struct {
	Min interface{}
	Max interface{}
}

// Covers reports whether r fully contains o.
func (r Range) Covers(o Range) bool {
	return Compare(r.Min, o.Min) <= 0 && Compare(o.Max, r.Max) <= 0
}
