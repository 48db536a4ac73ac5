// Package similar coalesces overlapping requests and decomposes calendar
// ranges into aligned sub-requests.
package similar

import (
	"encoding/json"
	"sync"

	"github.com/dbsmedya/gofetch/internal/types"
)

// DefaultLimit is the number of entries remembered per model.
const DefaultLimit = 64

// Entry is a registered request: the params and range a loader fetched,
// and the flight that completes when its data is stored.
type Entry struct {
	Model  string
	Params types.Params
	Range  *types.Range
	Flight *Flight
}

// NewEntry creates an entry with an unfinished flight.
func NewEntry(model string, params types.Params, rng *types.Range) *Entry {
	return &Entry{Model: model, Params: params, Range: rng, Flight: NewFlight()}
}

// Partial is a candidate covering part of a request. Params is the residual
// request still to be issued.
type Partial struct {
	Params types.Params
	Flight *Flight
	Weight int
}

// Registry remembers recent requests per model.
type Registry struct {
	mu      sync.Mutex
	entries map[string][]*Entry
	limit   int
}

// NewRegistry creates a registry keeping at most limit entries per model;
// the oldest entry is dropped first. limit <= 0 selects DefaultLimit.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Registry{entries: make(map[string][]*Entry), limit: limit}
}

// Add registers e.
func (r *Registry) Add(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.entries[e.Model], e)
	if len(list) > r.limit {
		list = append(list[:0:0], list[len(list)-r.limit:]...)
	}
	r.entries[e.Model] = list
}

// Remove unregisters e.
func (r *Registry) Remove(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[e.Model]
	for i, c := range list {
		if c == e {
			r.entries[e.Model] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Len returns the number of entries of a model.
func (r *Registry) Len(model string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[model])
}

// Reset forgets every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = make(map[string][]*Entry)
	r.mu.Unlock()
}

// Find looks for a registered request of model covering params within rng.
// full is the first candidate covering the request completely. Otherwise
// partial describes the first candidate covering all but one parameter,
// with the residual request to issue; both are nil when nothing helps.
func (r *Registry) Find(model string, params types.Params, rng *types.Range) (full *Entry, partial *Partial) {
	r.mu.Lock()
	list := append([]*Entry(nil), r.entries[model]...)
	r.mu.Unlock()

	var partials []*Partial
	for _, c := range list {
		if !rangeCovers(c.Range, rng) {
			continue
		}
		residual, ok := shrink(c.Params, params)
		if !ok {
			continue
		}
		if residual == nil {
			return c, nil
		}
		partials = append(partials, &Partial{Params: residual, Flight: c.Flight, Weight: weight(residual)})
	}

	// First match wins; Weight is informational.
	if len(partials) > 0 {
		return nil, partials[0]
	}
	return nil, nil
}

func rangeCovers(candidate, request *types.Range) bool {
	if candidate == nil {
		return true
	}
	if request == nil {
		return false
	}
	return candidate.Covers(*request)
}

// shrink compares the params of a candidate with a request. ok is false
// when the candidate cannot help. A nil residual with ok means full cover.
func shrink(candidate, request types.Params) (residual types.Params, ok bool) {
	outside := false

	for _, k := range candidate.Keys() {
		rv, present := request[k]
		if !present || (!types.Truthy(rv) && !(types.IsNumber(rv) && types.ToInt64(rv) == 0)) {
			return nil, false
		}
		if types.IsList(rv) && len(types.List(rv)) == 0 {
			return nil, false
		}

		covered := make(map[string]bool)
		for _, cv := range types.List(candidate[k]) {
			covered[types.Key(cv)] = true
		}

		requested := types.List(rv)
		var missing []interface{}
		seen := make(map[string]bool)
		for _, v := range requested {
			key := types.Key(v)
			if covered[key] || seen[key] {
				continue
			}
			seen[key] = true
			missing = append(missing, v)
		}

		if len(missing) == 0 {
			continue
		}
		if len(missing) == len(requested) || outside {
			return nil, false
		}
		outside = true

		if residual == nil {
			residual = make(types.Params)
		}
		residual[k] = missing
	}

	if residual == nil {
		return nil, true
	}
	for k, v := range request {
		if !residual.Has(k) {
			residual[k] = v
		}
	}
	return residual, true
}

func weight(p types.Params) int {
	b, err := json.Marshal(map[string]interface{}(p))
	if err != nil {
		return 0
	}
	return len(b)
}
